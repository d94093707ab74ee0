package models

import (
	"time"

	"github.com/google/uuid"
)

// Action kinds recorded by the action log.
const (
	ActionUpload       = "upload_csv"
	ActionRemoveNA     = "remove_na"
	ActionFilter       = "filter_by_value"
	ActionColumnValues = "get_column_values"
	ActionPlot         = "plot_scatter"
)

// Action is one user-triggered service exchange: what was asked, how
// the table changed and how it went. The dataset itself is never
// persisted; this is observability only.
type Action struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SessionID  uuid.UUID `db:"session_id" json:"session_id"`
	Kind       string    `db:"kind" json:"kind"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	RowsBefore int       `db:"rows_before" json:"rows_before"`
	RowsAfter  int       `db:"rows_after" json:"rows_after"`
	DurationMs int64     `db:"duration_ms" json:"duration_ms"`
	ErrorCode  string    `db:"error_code" json:"error_code,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
