package ports

import (
	"context"
	"io"

	"datalens/domain/filter"
	"datalens/domain/plot"
	"datalens/domain/table"
)

// DataService is the remote statistics/plotting backend. Every
// non-trivial computation lives behind this port; implementations
// return coded errors distinguishing transport failures from
// structurally invalid responses.
type DataService interface {
	// UploadCSV ships a raw CSV file and returns the parsed dataset
	// plus its describe table.
	UploadCSV(ctx context.Context, filename string, file io.Reader) (*table.Payload, error)

	// RemoveNA drops rows with missing values, scoped to the given
	// columns or all columns when the slice is empty.
	RemoveNA(ctx context.Context, columns []string) (*table.Payload, error)

	// FilterByValue restricts rows to a discrete value set or, for a
	// numeric column, a [min, max] pair.
	FilterByValue(ctx context.Context, column string, values []interface{}) (*table.Payload, error)

	// ColumnValues fetches the picker payload for a column. The caller
	// passes the column's classified kind: only a numeric column's
	// two-value response is read as a [min, max] range.
	ColumnValues(ctx context.Context, column string, numeric bool) (*filter.ColumnValues, error)

	// PlotScatter submits the full plot configuration and returns the
	// parsed figure description.
	PlotScatter(ctx context.Context, cfg plot.Config) (*plot.Figure, error)
}
