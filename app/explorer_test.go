package app

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"datalens/domain/filter"
	"datalens/domain/plot"
	"datalens/domain/table"
	"datalens/internal/errors"
)

// fakeService lets each test script the remote side per call.
type fakeService struct {
	uploadFn       func(ctx context.Context, filename string, file io.Reader) (*table.Payload, error)
	removeNAFn     func(ctx context.Context, columns []string) (*table.Payload, error)
	filterFn       func(ctx context.Context, column string, values []interface{}) (*table.Payload, error)
	columnValuesFn func(ctx context.Context, column string, numeric bool) (*filter.ColumnValues, error)
	plotFn         func(ctx context.Context, cfg plot.Config) (*plot.Figure, error)
}

func (f *fakeService) UploadCSV(ctx context.Context, filename string, file io.Reader) (*table.Payload, error) {
	return f.uploadFn(ctx, filename, file)
}

func (f *fakeService) RemoveNA(ctx context.Context, columns []string) (*table.Payload, error) {
	return f.removeNAFn(ctx, columns)
}

func (f *fakeService) FilterByValue(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
	return f.filterFn(ctx, column, values)
}

func (f *fakeService) ColumnValues(ctx context.Context, column string, numeric bool) (*filter.ColumnValues, error) {
	return f.columnValuesFn(ctx, column, numeric)
}

func (f *fakeService) PlotScatter(ctx context.Context, cfg plot.Config) (*plot.Figure, error) {
	return f.plotFn(ctx, cfg)
}

func tablePayload(rows ...table.Row) *table.Payload {
	return &table.Payload{
		Headers:          []string{"price", "region"},
		Rows:             rows,
		DescribedHeaders: []string{"ColumnName", "count"},
		DescribedRows: []table.Row{
			{"ColumnName": "price", "count": float64(len(rows))},
			{"ColumnName": "region", "count": float64(len(rows))},
		},
	}
}

func newTestExplorer(svc *fakeService) *Explorer {
	return NewExplorer(uuid.New(), svc, nil, nil, nil)
}

func uploaded(t *testing.T, svc *fakeService) *Explorer {
	t.Helper()
	svc.uploadFn = func(ctx context.Context, filename string, file io.Reader) (*table.Payload, error) {
		return tablePayload(
			table.Row{"price": 1.0, "region": "east"},
			table.Row{"price": 2.0, "region": "west"},
		), nil
	}
	ex := newTestExplorer(svc)
	if err := ex.UploadCSV(context.Background(), "t.csv", strings.NewReader("x")); err != nil {
		t.Fatalf("UploadCSV() = %v", err)
	}
	return ex
}

func TestUploadMakesStateVisible(t *testing.T) {
	ex := uploaded(t, &fakeService{})

	view := ex.State()
	if !view.Loaded {
		t.Fatal("view not loaded after upload")
	}
	if view.Version != 1 {
		t.Errorf("version = %d, want 1", view.Version)
	}
	if view.Dataset.Headers[0] != table.IndexColumn {
		t.Errorf("headers = %v, want index first", view.Dataset.Headers)
	}
	if view.Message != "" {
		t.Errorf("message = %q, want empty", view.Message)
	}
	if view.Kinds["price"] != table.KindNumeric || view.Kinds["region"] != table.KindCategorical {
		t.Errorf("kinds = %v", view.Kinds)
	}
}

func TestOperationsBeforeUploadAreRejected(t *testing.T) {
	// Service functions are nil on purpose: touching them would panic.
	ex := newTestExplorer(&fakeService{})

	if err := ex.RemoveNA(context.Background(), nil); errors.GetCode(err) != errors.CodeValidationError {
		t.Errorf("RemoveNA code = %q", errors.GetCode(err))
	}
	if err := ex.ApplyFilter(context.Background(), filter.Selection{Column: "a", Values: []interface{}{"x"}}); errors.GetCode(err) != errors.CodeValidationError {
		t.Errorf("ApplyFilter code = %q", errors.GetCode(err))
	}
	if _, err := ex.RequestPlot(context.Background(), plot.Form{X: "a", Y: "b"}); errors.GetCode(err) != errors.CodeValidationError {
		t.Errorf("RequestPlot code = %q", errors.GetCode(err))
	}
	if ex.Message() == "" {
		t.Error("message slot empty after rejected operation")
	}
}

func TestStructuralFailureLeavesStateUntouched(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)
	before := ex.State()

	svc.removeNAFn = func(ctx context.Context, columns []string) (*table.Payload, error) {
		return nil, errors.StructuralError("response is missing data_described")
	}
	err := ex.RemoveNA(context.Background(), nil)
	if errors.GetCode(err) != errors.CodeStructuralError {
		t.Fatalf("code = %q, want structural", errors.GetCode(err))
	}

	after := ex.State()
	if after.Version != before.Version {
		t.Errorf("version moved from %d to %d on failure", before.Version, after.Version)
	}
	if len(after.Dataset.Rows) != len(before.Dataset.Rows) {
		t.Errorf("rows changed on failure: %d -> %d", len(before.Dataset.Rows), len(after.Dataset.Rows))
	}
	if !strings.Contains(after.Message, "data_described") {
		t.Errorf("message = %q, want the missing field named", after.Message)
	}

	// The next success clears the message.
	svc.removeNAFn = func(ctx context.Context, columns []string) (*table.Payload, error) {
		return tablePayload(table.Row{"price": 1.0, "region": "east"}), nil
	}
	if err := ex.RemoveNA(context.Background(), nil); err != nil {
		t.Fatalf("RemoveNA() = %v", err)
	}
	if msg := ex.Message(); msg != "" {
		t.Errorf("message = %q after recovery, want empty", msg)
	}
}

func TestApplyFilterSendsRangeAsPair(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	var gotValues []interface{}
	svc.filterFn = func(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
		gotValues = values
		return tablePayload(table.Row{"price": 1.0, "region": "east"}), nil
	}

	sel := filter.Selection{Column: "price", Range: &filter.NumericRange{Min: 1, Max: 5}}
	if err := ex.ApplyFilter(context.Background(), sel); err != nil {
		t.Fatalf("ApplyFilter() = %v", err)
	}
	if len(gotValues) != 2 || gotValues[0] != 1.0 || gotValues[1] != 5.0 {
		t.Errorf("wire values = %v, want [1 5]", gotValues)
	}
	if got := ex.State().Selection; got.Column != "price" {
		t.Errorf("selection = %+v", got)
	}
}

func TestApplyFilterRejectsEmptySelection(t *testing.T) {
	ex := uploaded(t, &fakeService{})
	err := ex.ApplyFilter(context.Background(), filter.Selection{Column: "price"})
	if errors.GetCode(err) != errors.CodeValidationError {
		t.Errorf("code = %q, want validation", errors.GetCode(err))
	}
}

func TestSelectionSurvivesDatasetReplacement(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	svc.filterFn = func(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
		return tablePayload(table.Row{"price": 1.0, "region": "east"}), nil
	}
	sel := filter.Selection{Column: "region", Values: []interface{}{"east"}}
	if err := ex.ApplyFilter(context.Background(), sel); err != nil {
		t.Fatalf("ApplyFilter() = %v", err)
	}

	// A fresh upload replaces the table but not the selection.
	if err := ex.UploadCSV(context.Background(), "new.csv", strings.NewReader("x")); err != nil {
		t.Fatalf("UploadCSV() = %v", err)
	}
	view := ex.State()
	if view.Selection.Column != "region" {
		t.Errorf("selection after upload = %+v, want region kept", view.Selection)
	}
	if view.Version != 3 {
		t.Errorf("version = %d, want 3", view.Version)
	}
}

func TestSelectFilterColumnClearsBeforeFetch(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	svc.columnValuesFn = func(ctx context.Context, column string, numeric bool) (*filter.ColumnValues, error) {
		// The previous selection must already be gone while the
		// fetch is still running.
		if got := ex.State().Selection; len(got.Values) != 0 || got.Range != nil {
			t.Errorf("selection not cleared during fetch: %+v", got)
		}
		if numeric {
			t.Errorf("region classified numeric")
		}
		return &filter.ColumnValues{Column: column, Values: []interface{}{"east", "west"}}, nil
	}

	cv, err := ex.SelectFilterColumn(context.Background(), "region")
	if err != nil {
		t.Fatalf("SelectFilterColumn() = %v", err)
	}
	if cv == nil || len(cv.Values) != 2 {
		t.Fatalf("choices = %+v", cv)
	}
	if got := ex.State().Choices; got == nil || got.Column != "region" {
		t.Errorf("view choices = %+v", got)
	}
}

func TestStaleColumnValuesAreDiscarded(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	release := make(chan struct{})
	inFlight := make(chan struct{})
	svc.columnValuesFn = func(ctx context.Context, column string, numeric bool) (*filter.ColumnValues, error) {
		if column == "region" {
			close(inFlight)
			<-release
			return &filter.ColumnValues{Column: "region", Values: []interface{}{"east"}}, nil
		}
		if !numeric {
			t.Errorf("price classified categorical")
		}
		return &filter.ColumnValues{Column: "price", Numeric: true, Range: &filter.NumericRange{Min: 1, Max: 2}}, nil
	}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		cv, err := ex.SelectFilterColumn(context.Background(), "region")
		if err != nil {
			t.Errorf("stale select returned error: %v", err)
		}
		if cv != nil {
			t.Errorf("stale select returned choices: %+v", cv)
		}
	}()

	<-inFlight
	// Second switch lands first; the blocked first response must be
	// discarded when it finally arrives.
	cv, err := ex.SelectFilterColumn(context.Background(), "price")
	if err != nil {
		t.Fatalf("SelectFilterColumn() = %v", err)
	}
	if cv == nil || !cv.Numeric {
		t.Fatalf("choices = %+v", cv)
	}

	close(release)
	<-firstDone

	got := ex.State()
	if got.Choices == nil || got.Choices.Column != "price" {
		t.Errorf("choices after race = %+v, want price kept", got.Choices)
	}
	if got.Selection.Column != "price" {
		t.Errorf("selection after race = %+v", got.Selection)
	}
}

func TestStaleTableResponseIsDiscarded(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	release := make(chan struct{})
	inFlight := make(chan struct{})
	svc.removeNAFn = func(ctx context.Context, columns []string) (*table.Payload, error) {
		close(inFlight)
		<-release
		// One leftover row, from the slower earlier request.
		return tablePayload(table.Row{"price": 9.0, "region": "stale"}), nil
	}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if err := ex.RemoveNA(context.Background(), nil); err != nil {
			t.Errorf("stale RemoveNA returned error: %v", err)
		}
	}()

	<-inFlight
	svc.filterFn = func(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
		return tablePayload(
			table.Row{"price": 1.0, "region": "east"},
			table.Row{"price": 2.0, "region": "east"},
		), nil
	}
	sel := filter.Selection{Column: "region", Values: []interface{}{"east"}}
	if err := ex.ApplyFilter(context.Background(), sel); err != nil {
		t.Fatalf("ApplyFilter() = %v", err)
	}

	close(release)
	<-firstDone

	view := ex.State()
	if len(view.Dataset.Rows) != 2 {
		t.Fatalf("rows = %d, want the 2 rows of the newer response", len(view.Dataset.Rows))
	}
	if view.Dataset.Rows[0]["region"] != "east" {
		t.Errorf("row 0 = %v, stale response won", view.Dataset.Rows[0])
	}
	if view.Version != 2 {
		t.Errorf("version = %d, want 2 (stale response must not bump it)", view.Version)
	}
}

func TestSlowStaleResponseCannotOverwriteNewerState(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	// A bulky response keeps validation busy; whatever interleaving the
	// scheduler picks, the older response must never end up installed
	// over the newer one.
	staleRows := make([]table.Row, 100000)
	for i := range staleRows {
		staleRows[i] = table.Row{"price": float64(i), "region": "stale"}
	}
	removeStarted := make(chan struct{})
	svc.removeNAFn = func(ctx context.Context, columns []string) (*table.Payload, error) {
		close(removeStarted)
		return tablePayload(staleRows...), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ex.RemoveNA(context.Background(), nil); err != nil {
			t.Errorf("RemoveNA() = %v", err)
		}
	}()

	<-removeStarted
	svc.filterFn = func(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
		return tablePayload(
			table.Row{"price": 1.0, "region": "east"},
			table.Row{"price": 2.0, "region": "east"},
		), nil
	}
	sel := filter.Selection{Column: "region", Values: []interface{}{"east"}}
	if err := ex.ApplyFilter(context.Background(), sel); err != nil {
		t.Fatalf("ApplyFilter() = %v", err)
	}
	<-done

	view := ex.State()
	if len(view.Dataset.Rows) != 2 {
		t.Fatalf("rows = %d, older response overwrote newer state", len(view.Dataset.Rows))
	}
	if view.Dataset.Rows[0]["region"] != "east" {
		t.Errorf("row 0 = %v, older response overwrote newer state", view.Dataset.Rows[0])
	}
}

func TestStaleFailureDoesNotClobberMessage(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	release := make(chan struct{})
	inFlight := make(chan struct{})
	svc.removeNAFn = func(ctx context.Context, columns []string) (*table.Payload, error) {
		close(inFlight)
		<-release
		return nil, errors.StructuralError("response is missing data")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The failure arrives after a newer request succeeded; it must
		// be discarded, not surfaced.
		if err := ex.RemoveNA(context.Background(), nil); err != nil {
			t.Errorf("stale RemoveNA returned error: %v", err)
		}
	}()

	<-inFlight
	svc.filterFn = func(ctx context.Context, column string, values []interface{}) (*table.Payload, error) {
		return tablePayload(table.Row{"price": 1.0, "region": "east"}), nil
	}
	sel := filter.Selection{Column: "region", Values: []interface{}{"east"}}
	if err := ex.ApplyFilter(context.Background(), sel); err != nil {
		t.Fatalf("ApplyFilter() = %v", err)
	}

	close(release)
	<-done

	if msg := ex.Message(); msg != "" {
		t.Errorf("message = %q, stale failure clobbered the slot", msg)
	}
}

func TestRequestPlotValidatesBeforeCalling(t *testing.T) {
	called := false
	svc := &fakeService{}
	ex := uploaded(t, svc)
	svc.plotFn = func(ctx context.Context, cfg plot.Config) (*plot.Figure, error) {
		called = true
		return &plot.Figure{}, nil
	}

	_, err := ex.RequestPlot(context.Background(), plot.Form{X: "price"})
	if errors.GetCode(err) != errors.CodeValidationError {
		t.Fatalf("code = %q, want validation", errors.GetCode(err))
	}
	if called {
		t.Error("service called despite missing y encoding")
	}
}

func TestRequestPlotStoresConfigAndFigure(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	var gotCfg plot.Config
	svc.plotFn = func(ctx context.Context, cfg plot.Config) (*plot.Figure, error) {
		gotCfg = cfg
		return &plot.Figure{Data: []json.RawMessage{json.RawMessage(`{}`)}, Layout: json.RawMessage(`{}`)}, nil
	}

	fig, err := ex.RequestPlot(context.Background(), plot.Form{X: "price", Y: "price", Size: "12", Opacity: "0.5"})
	if err != nil {
		t.Fatalf("RequestPlot() = %v", err)
	}
	if fig == nil || len(fig.Data) != 1 {
		t.Fatalf("figure = %+v", fig)
	}
	if gotCfg.Size != 12 || gotCfg.Opacity != 0.5 || gotCfg.Palette != plot.DefaultPalette {
		t.Errorf("coerced config = %+v", gotCfg)
	}
	if ex.Figure() == nil {
		t.Error("figure not retained")
	}
	if got := ex.State().PlotCfg; got.Size != 12 {
		t.Errorf("view plot config = %+v", got)
	}
}

func TestResetPlotRestoresDefaultsAndStalesInFlight(t *testing.T) {
	svc := &fakeService{}
	ex := uploaded(t, svc)

	release := make(chan struct{})
	inFlight := make(chan struct{})
	svc.plotFn = func(ctx context.Context, cfg plot.Config) (*plot.Figure, error) {
		close(inFlight)
		<-release
		return &plot.Figure{Data: []json.RawMessage{}, Layout: json.RawMessage(`{}`)}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		fig, err := ex.RequestPlot(context.Background(), plot.Form{X: "price", Y: "price"})
		if err != nil {
			t.Errorf("stale RequestPlot returned error: %v", err)
		}
		if fig != nil {
			t.Error("stale RequestPlot returned a figure")
		}
	}()

	<-inFlight
	ex.ResetPlot()
	close(release)
	<-done

	got := ex.State().PlotCfg
	if got != plot.DefaultConfig() {
		t.Errorf("config after reset = %+v", got)
	}
	if ex.Figure() != nil {
		t.Error("figure installed from a request staled by reset")
	}
}
