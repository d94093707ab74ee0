package testkit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/montanaflynn/stats"

	"datalens/domain/table"
)

// describeHeaders mirrors the backend's describe-table column order.
var describeHeaders = []string{
	"ColumnName", "DataType", "count", "MissingValues",
	"mean", "std", "min", "25%", "50%", "75%", "max",
	"unique", "top", "freq",
}

// StubService is an in-process stand-in for the remote data service.
// It reproduces the wire contract — the four-field table payload, the
// column-values picker, and the stringified figure — so full flows can
// run in tests and in dev mode without the real backend.
type StubService struct {
	mu      sync.Mutex
	headers []string
	rows    []table.Row
	numeric map[string]bool
	router  chi.Router
}

// NewStubService builds the stub with its routes mounted.
func NewStubService() *StubService {
	s := &StubService{}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/upload_csv", s.handleUpload)
	r.Post("/remove_na", s.handleRemoveNA)
	r.Post("/filter_by_value", s.handleFilterByValue)
	r.Post("/get_column_values", s.handleColumnValues)
	r.Post("/plot_scatter", s.handlePlotScatter)
	s.router = r
	return s
}

// Router exposes the stub as an http.Handler for httptest servers.
func (s *StubService) Router() http.Handler { return s.router }

func (s *StubService) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil || len(records) < 1 {
		writeError(w, http.StatusInternalServerError, "could not parse CSV")
		return
	}

	headers := records[0]
	numeric := inferNumericColumns(headers, records[1:])
	rows := make([]table.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(table.Row, len(headers))
		for i, h := range headers {
			if i >= len(rec) || rec[i] == "" {
				row[h] = nil
				continue
			}
			if numeric[h] {
				v, _ := strconv.ParseFloat(rec[i], 64)
				row[h] = v
			} else {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	s.headers = headers
	s.rows = rows
	s.numeric = numeric
	s.mu.Unlock()

	s.writeTable(w, headers, rows)
}

func (s *StubService) handleRemoveNA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Columns []string `json:"columns"`
	}
	decodeBody(r, &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		writeError(w, http.StatusBadRequest, "No data uploaded yet")
		return
	}

	scope := req.Columns
	if len(scope) == 0 {
		scope = s.headers
	}
	kept := make([]table.Row, 0, len(s.rows))
	for _, row := range s.rows {
		complete := true
		for _, col := range scope {
			if row[col] == nil {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	s.writeTable(w, s.headers, s.rows)
}

func (s *StubService) handleFilterByValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column string        `json:"column"`
		Values []interface{} `json:"values"`
	}
	if err := decodeBody(r, &req); err != nil || req.Column == "" {
		writeError(w, http.StatusBadRequest, "column is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		writeError(w, http.StatusBadRequest, "No data uploaded yet")
		return
	}

	var keep func(v interface{}) bool
	if s.numeric[req.Column] && len(req.Values) == 2 {
		lo, okLo := table.AsFloat(req.Values[0])
		hi, okHi := table.AsFloat(req.Values[1])
		if !okLo || !okHi {
			writeError(w, http.StatusBadRequest, "range bounds must be numeric")
			return
		}
		keep = func(v interface{}) bool {
			f, ok := table.AsFloat(v)
			return ok && f >= lo && f <= hi
		}
	} else {
		wanted := make(map[string]bool, len(req.Values))
		for _, v := range req.Values {
			wanted[fmt.Sprint(v)] = true
		}
		keep = func(v interface{}) bool {
			return v != nil && wanted[fmt.Sprint(v)]
		}
	}

	kept := make([]table.Row, 0, len(s.rows))
	for _, row := range s.rows {
		if keep(row[req.Column]) {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	s.writeTable(w, s.headers, s.rows)
}

func (s *StubService) handleColumnValues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column string `json:"column"`
	}
	if err := decodeBody(r, &req); err != nil || req.Column == "" {
		writeError(w, http.StatusBadRequest, "column is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		writeError(w, http.StatusBadRequest, "No data uploaded yet")
		return
	}

	values := []interface{}{}
	if s.numeric[req.Column] {
		// All values may have been filtered away; then there is no
		// range to offer.
		if data := s.columnFloats(req.Column); len(data) > 0 {
			lo, _ := stats.Min(data)
			hi, _ := stats.Max(data)
			values = append(values, lo, hi)
		}
	} else {
		seen := make(map[string]bool)
		for _, row := range s.rows {
			v := row[req.Column]
			if v == nil {
				continue
			}
			key := fmt.Sprint(v)
			if !seen[key] {
				seen[key] = true
				values = append(values, v)
			}
		}
	}
	writeJSON(w, map[string]interface{}{"values": values})
}

func (s *StubService) handlePlotScatter(w http.ResponseWriter, r *http.Request) {
	var cfg struct {
		X       string  `json:"x"`
		Y       string  `json:"y"`
		Color   string  `json:"color"`
		Size    float64 `json:"size"`
		Opacity float64 `json:"opacity"`
		Palette string  `json:"palette"`
	}
	if err := decodeBody(r, &cfg); err != nil || cfg.X == "" || cfg.Y == "" {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		writeError(w, http.StatusBadRequest, "No data uploaded yet")
		return
	}

	type marker struct {
		Size       float64 `json:"size"`
		Opacity    float64 `json:"opacity"`
		Colorscale string  `json:"colorscale,omitempty"`
	}
	type trace struct {
		Type   string        `json:"type"`
		Mode   string        `json:"mode"`
		Name   string        `json:"name,omitempty"`
		X      []interface{} `json:"x"`
		Y      []interface{} `json:"y"`
		Marker marker        `json:"marker"`
	}

	mk := marker{Size: cfg.Size, Opacity: cfg.Opacity, Colorscale: cfg.Palette}
	groups := map[string]*trace{}
	var order []string
	for _, row := range s.rows {
		name := ""
		if cfg.Color != "" {
			name = fmt.Sprint(row[cfg.Color])
		}
		tr, ok := groups[name]
		if !ok {
			tr = &trace{Type: "scatter", Mode: "markers", Name: name, Marker: mk}
			groups[name] = tr
			order = append(order, name)
		}
		tr.X = append(tr.X, row[cfg.X])
		tr.Y = append(tr.Y, row[cfg.Y])
	}

	traces := make([]*trace, 0, len(order))
	for _, name := range order {
		traces = append(traces, groups[name])
	}
	figure := map[string]interface{}{
		"data": traces,
		"layout": map[string]interface{}{
			"xaxis": map[string]string{"title": cfg.X},
			"yaxis": map[string]string{"title": cfg.Y},
		},
	}

	// The real service hands back a serialized figure string.
	serialized, err := json.Marshal(figure)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "figure serialization failed")
		return
	}
	writeJSON(w, string(serialized))
}

// writeTable responds with the four-field payload, describe table
// included. Caller holds the lock or owns the data exclusively.
func (s *StubService) writeTable(w http.ResponseWriter, headers []string, rows []table.Row) {
	writeJSON(w, map[string]interface{}{
		"headers":           headers,
		"data":              rows,
		"headers_described": describeHeaders,
		"data_described":    s.describe(headers, rows),
	})
}

// describe builds one summary row per column: count and missing for
// everything, mean/std (4 significant figures) and the five-number
// spread for numeric columns, unique/top/freq for the rest.
func (s *StubService) describe(headers []string, rows []table.Row) []table.Row {
	out := make([]table.Row, 0, len(headers))
	for _, h := range headers {
		row := make(table.Row, len(describeHeaders))
		for _, dh := range describeHeaders {
			row[dh] = nil
		}
		row["ColumnName"] = h

		missing := 0
		for _, r := range rows {
			if r[h] == nil {
				missing++
			}
		}
		row["MissingValues"] = missing
		row["count"] = len(rows) - missing

		if s.numeric[h] {
			row["DataType"] = "float64"
			data := columnFloats(rows, h)
			if len(data) > 0 {
				mean, _ := stats.Mean(data)
				std, _ := stats.StandardDeviationSample(data)
				lo, _ := stats.Min(data)
				hi, _ := stats.Max(data)
				q25, _ := stats.Percentile(data, 25)
				q50, _ := stats.Percentile(data, 50)
				q75, _ := stats.Percentile(data, 75)
				row["mean"] = fmt.Sprintf("%.4g", mean)
				row["std"] = fmt.Sprintf("%.4g", std)
				row["min"] = lo
				row["25%"] = q25
				row["50%"] = q50
				row["75%"] = q75
				row["max"] = hi
			}
		} else {
			row["DataType"] = "object"
			counts := map[string]int{}
			var top string
			freq := 0
			for _, r := range rows {
				v := r[h]
				if v == nil {
					continue
				}
				key := fmt.Sprint(v)
				counts[key]++
				if counts[key] > freq {
					top, freq = key, counts[key]
				}
			}
			row["unique"] = len(counts)
			if freq > 0 {
				row["top"] = top
				row["freq"] = freq
			}
		}
		out = append(out, row)
	}
	return out
}

func (s *StubService) columnFloats(column string) []float64 {
	return columnFloats(s.rows, column)
}

func columnFloats(rows []table.Row, column string) []float64 {
	var data []float64
	for _, row := range rows {
		if f, ok := table.AsFloat(row[column]); ok {
			data = append(data, f)
		}
	}
	return data
}

// inferNumericColumns marks a column numeric when every non-empty cell
// parses as a number, matching the backend's type inference.
func inferNumericColumns(headers []string, records [][]string) map[string]bool {
	numeric := make(map[string]bool, len(headers))
	for i, h := range headers {
		nonEmpty := 0
		allParse := true
		for _, rec := range records {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			nonEmpty++
			if _, err := strconv.ParseFloat(rec[i], 64); err != nil {
				allParse = false
				break
			}
		}
		numeric[h] = nonEmpty > 0 && allParse
	}
	return numeric
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
