package table

import "fmt"

// IndexColumn is the synthetic row-number column injected ahead of the
// service-provided headers so the view has a stable first column.
const IndexColumn = "index"

// Row maps a column name to a cell value. Cells are number, string or
// nil; the JSON decoder hands numeric cells over as float64.
type Row map[string]interface{}

// Table is an ordered set of columns plus the rows under them. Column
// order drives rendering order and is preserved end to end. The same
// shape carries both the working dataset and its describe table.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Payload is the four-field body every table-producing service endpoint
// returns. All four fields must be present; a nil slice here means the
// field was absent from the response.
type Payload struct {
	Headers          []string `json:"headers"`
	Rows             []Row    `json:"data"`
	DescribedHeaders []string `json:"headers_described"`
	DescribedRows    []Row    `json:"data_described"`
}

// Validate checks that every row carries exactly the declared columns.
func (t Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d fields, expected %d", i, len(row), len(t.Headers))
		}
		for _, h := range t.Headers {
			if _, ok := row[h]; !ok {
				return fmt.Errorf("row %d is missing column %q", i, h)
			}
		}
	}
	return nil
}

// HasColumn reports whether the table declares the named column.
func (t Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Column returns the values of a single column in row order.
func (t Table) Column(name string) []interface{} {
	values := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values
}

// WithIndex returns a copy of the table with the synthetic index column
// injected first, numbering rows from zero. A table that already
// carries an index column is returned unchanged.
func (t Table) WithIndex() Table {
	if t.HasColumn(IndexColumn) {
		return t
	}
	indexed := Table{
		Headers: append([]string{IndexColumn}, t.Headers...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, row := range t.Rows {
		copied := make(Row, len(row)+1)
		for k, v := range row {
			copied[k] = v
		}
		copied[IndexColumn] = i
		indexed.Rows[i] = copied
	}
	return indexed
}
