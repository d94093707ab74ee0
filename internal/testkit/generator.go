package testkit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"datalens/domain/table"
)

// ColumnSpec describes one synthetic column. Numeric columns draw from
// a normal distribution; categorical columns sample their categories
// uniformly. MissingRate injects empty cells.
type ColumnSpec struct {
	Name        string
	Kind        table.Kind
	Mean        float64
	StdDev      float64
	Categories  []string
	MissingRate float64
}

// DefaultColumns is a small retail-flavored schema that exercises both
// column kinds and missing values.
func DefaultColumns() []ColumnSpec {
	return []ColumnSpec{
		{Name: "price", Kind: table.KindNumeric, Mean: 42.5, StdDev: 12.0, MissingRate: 0.05},
		{Name: "quantity", Kind: table.KindNumeric, Mean: 3.0, StdDev: 1.5},
		{Name: "rating", Kind: table.KindNumeric, Mean: 3.8, StdDev: 0.9, MissingRate: 0.1},
		{Name: "category", Kind: table.KindCategorical, Categories: []string{"tools", "garden", "kitchen", "office"}},
		{Name: "region", Kind: table.KindCategorical, Categories: []string{"north", "south", "east", "west"}, MissingRate: 0.02},
	}
}

// GenerateCSV produces a deterministic synthetic CSV for the given
// seed, ready to feed through the upload path.
func GenerateCSV(seed uint64, rows int, cols []ColumnSpec) ([]byte, error) {
	if rows < 1 {
		return nil, fmt.Errorf("row count must be positive, got %d", rows)
	}
	if len(cols) == 0 {
		cols = DefaultColumns()
	}

	src := rand.NewPCG(seed, seed+1)
	rng := rand.New(src)
	missing := distuv.Uniform{Min: 0, Max: 1, Src: src}

	draws := make([]distuv.Normal, len(cols))
	for i, c := range cols {
		if c.Kind == table.KindNumeric {
			sigma := c.StdDev
			if sigma <= 0 {
				sigma = 1
			}
			draws[i] = distuv.Normal{Mu: c.Mean, Sigma: sigma, Src: src}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	record := make([]string, len(cols))
	for r := 0; r < rows; r++ {
		for i, c := range cols {
			if c.MissingRate > 0 && missing.Rand() < c.MissingRate {
				record[i] = ""
				continue
			}
			if c.Kind == table.KindNumeric {
				record[i] = strconv.FormatFloat(draws[i].Rand(), 'f', 2, 64)
			} else {
				record[i] = c.Categories[rng.IntN(len(c.Categories))]
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
