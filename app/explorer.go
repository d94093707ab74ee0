package app

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"datalens/domain/filter"
	"datalens/domain/plot"
	"datalens/domain/table"
	"datalens/internal"
	"datalens/internal/errors"
	"datalens/internal/state"
	"datalens/models"
	"datalens/ports"
)

// Explorer owns one session's exploration state: the table store, the
// user's filter selection, the plot configuration and the single
// user-visible message slot. Controller operations build a service
// request, call out with the lock released, and fold the response back
// in only if no newer request of the same scope has been issued since
// (stale responses are discarded instead of racing last-writer-wins).
type Explorer struct {
	id       uuid.UUID
	svc      ports.DataService
	renderer ports.ChartRenderer
	actions  ports.ActionLog
	log      *internal.Logger

	store *state.Store

	mu         sync.Mutex
	selection  filter.Selection
	choices    *filter.ColumnValues
	plotCfg    plot.Config
	figure     *plot.Figure
	message    string
	tableSeq   uint64
	choicesSeq uint64
	plotSeq    uint64
}

// NewExplorer creates a session explorer. renderer and actions may be
// nil; rendering and audit logging are then skipped.
func NewExplorer(id uuid.UUID, svc ports.DataService, renderer ports.ChartRenderer, actions ports.ActionLog, log *internal.Logger) *Explorer {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Explorer{
		id:       id,
		svc:      svc,
		renderer: renderer,
		actions:  actions,
		log:      log,
		store:    state.NewStore(),
		plotCfg:  plot.DefaultConfig(),
	}
}

// ID returns the session identifier.
func (e *Explorer) ID() uuid.UUID { return e.id }

// UploadCSV ships a CSV to the service and replaces the table state
// with the parsed result.
func (e *Explorer) UploadCSV(ctx context.Context, filename string, file io.Reader) error {
	token := e.nextTableToken()
	started := time.Now()
	rowsBefore := len(e.store.Dataset().Rows)

	payload, err := e.svc.UploadCSV(ctx, filename, file)
	err = e.applyTable(token, payload, err)
	e.record(ctx, models.ActionUpload, filename, rowsBefore, started, err)
	return err
}

// RemoveNA drops rows with missing values, scoped to the given columns
// or all columns when empty.
func (e *Explorer) RemoveNA(ctx context.Context, columns []string) error {
	if err := e.requireLoaded(); err != nil {
		return err
	}
	token := e.nextTableToken()
	started := time.Now()
	rowsBefore := len(e.store.Dataset().Rows)

	payload, err := e.svc.RemoveNA(ctx, columns)
	err = e.applyTable(token, payload, err)
	e.record(ctx, models.ActionRemoveNA, strings.Join(columns, ","), rowsBefore, started, err)
	return err
}

// ApplyFilter restricts rows to the given selection and replaces the
// table state with the filtered result.
func (e *Explorer) ApplyFilter(ctx context.Context, sel filter.Selection) error {
	if err := e.requireLoaded(); err != nil {
		return err
	}
	if !sel.Active() {
		return e.fail(errors.ValidationError("choose a column and at least one value before filtering"))
	}

	e.mu.Lock()
	e.selection = sel
	e.mu.Unlock()

	token := e.nextTableToken()
	started := time.Now()
	rowsBefore := len(e.store.Dataset().Rows)

	payload, err := e.svc.FilterByValue(ctx, sel.Column, sel.Arguments())
	err = e.applyTable(token, payload, err)
	e.record(ctx, models.ActionFilter, sel.Column, rowsBefore, started, err)
	return err
}

// SelectFilterColumn switches the filter target. The previous value
// selection is cleared immediately; the picker payload for the new
// column is fetched and installed only if no later switch happened
// while the fetch was in flight.
func (e *Explorer) SelectFilterColumn(ctx context.Context, column string) (*filter.ColumnValues, error) {
	e.mu.Lock()
	e.selection = filter.Selection{Column: column}
	e.choices = nil
	e.choicesSeq++
	token := e.choicesSeq
	e.mu.Unlock()

	if column == "" {
		return nil, nil
	}
	if err := e.requireLoaded(); err != nil {
		return nil, err
	}

	// The column's classified kind decides whether the picker payload
	// is read as a numeric range or a discrete value set.
	numeric := table.Classify(e.store.Dataset())[column] == table.KindNumeric

	started := time.Now()
	cv, err := e.svc.ColumnValues(ctx, column, numeric)

	e.mu.Lock()
	if token != e.choicesSeq {
		e.mu.Unlock()
		e.log.Debug("[Explorer] discarding stale column values for %q", column)
		return nil, nil
	}
	if err != nil {
		e.message = err.Error()
		e.mu.Unlock()
		e.record(ctx, models.ActionColumnValues, column, 0, started, err)
		return nil, err
	}
	e.choices = cv
	e.message = ""
	e.mu.Unlock()

	e.record(ctx, models.ActionColumnValues, column, 0, started, nil)
	return cv, nil
}

// RequestPlot coerces the form controls, validates the axis encodings
// locally and, only when both are set, asks the service for a figure.
// The returned figure overwrites the previous one and is handed to the
// chart renderer.
func (e *Explorer) RequestPlot(ctx context.Context, form plot.Form) (*plot.Figure, error) {
	cfg := form.Coerce()
	if err := cfg.Validate(); err != nil {
		return nil, e.fail(errors.ValidationError(err.Error()))
	}
	if err := e.requireLoaded(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.plotCfg = cfg
	e.plotSeq++
	token := e.plotSeq
	e.mu.Unlock()

	started := time.Now()
	fig, err := e.svc.PlotScatter(ctx, cfg)

	e.mu.Lock()
	if token != e.plotSeq {
		e.mu.Unlock()
		e.log.Debug("[Explorer] discarding stale figure for %s/%s", cfg.X, cfg.Y)
		return nil, nil
	}
	if err != nil {
		e.message = err.Error()
		e.mu.Unlock()
		e.record(ctx, models.ActionPlot, cfg.X+"/"+cfg.Y, 0, started, err)
		return nil, err
	}
	e.figure = fig
	e.message = ""
	e.mu.Unlock()

	if e.renderer != nil {
		if rerr := e.renderer.Render(ctx, e.id.String(), fig); rerr != nil {
			e.log.Warn("[Explorer] renderer rejected figure: %v", rerr)
		}
	}
	e.record(ctx, models.ActionPlot, cfg.X+"/"+cfg.Y, 0, started, nil)
	return fig, nil
}

// ResetPlot restores the plot configuration to its defaults. The last
// rendered figure stays until the next successful request replaces it.
func (e *Explorer) ResetPlot() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plotCfg = plot.DefaultConfig()
	e.plotSeq++ // any in-flight plot response is now stale
}

// View is the derived, render-ready state the view layer consumes.
type View struct {
	Dataset   table.Table           `json:"dataset"`
	Describe  table.Table           `json:"describe"`
	Version   uint64                `json:"version"`
	Kinds     map[string]table.Kind `json:"kinds"`
	Selection filter.Selection      `json:"selection"`
	Choices   *filter.ColumnValues  `json:"choices,omitempty"`
	PlotCfg   plot.Config           `json:"plot_config"`
	Message   string                `json:"message,omitempty"`
	Loaded    bool                  `json:"loaded"`
}

// State snapshots everything the view needs. Column kinds are
// re-derived from the current dataset on every call.
func (e *Explorer) State() View {
	dataset, describe, version := e.store.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()
	return View{
		Dataset:   dataset,
		Describe:  describe,
		Version:   version,
		Kinds:     table.Classify(dataset),
		Selection: e.selection,
		Choices:   e.choices,
		PlotCfg:   e.plotCfg,
		Message:   e.message,
		Loaded:    version > 0,
	}
}

// Figure returns the most recently rendered figure, if any.
func (e *Explorer) Figure() *plot.Figure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.figure
}

// Message returns the current user-visible message slot.
func (e *Explorer) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// applyTable folds a table-producing response into the store, unless a
// newer table mutation was issued while this one was in flight. The
// payload is validated outside the lock; the token re-check and the
// install happen under it, so a response that goes stale during
// validation can neither swap the store nor touch the message slot.
func (e *Explorer) applyTable(token uint64, payload *table.Payload, err error) error {
	var dataset, describe table.Table
	if err == nil {
		dataset, describe, err = state.Prepare(payload)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.tableSeq {
		e.log.Debug("[Explorer] discarding stale table response")
		return nil
	}
	if err != nil {
		e.message = err.Error()
		return err
	}
	e.store.Install(dataset, describe)
	e.message = ""
	return nil
}

func (e *Explorer) nextTableToken() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tableSeq++
	return e.tableSeq
}

func (e *Explorer) requireLoaded() error {
	if !e.store.Loaded() {
		return e.fail(errors.ValidationError("no data uploaded yet"))
	}
	return nil
}

// fail surfaces a local validation failure in the message slot without
// touching any other state.
func (e *Explorer) fail(err error) error {
	e.mu.Lock()
	e.message = err.Error()
	e.mu.Unlock()
	return err
}

func (e *Explorer) record(ctx context.Context, kind, detail string, rowsBefore int, started time.Time, opErr error) {
	if e.actions == nil {
		return
	}
	action := &models.Action{
		SessionID:  e.id,
		Kind:       kind,
		Detail:     detail,
		RowsBefore: rowsBefore,
		RowsAfter:  len(e.store.Dataset().Rows),
		DurationMs: time.Since(started).Milliseconds(),
	}
	if opErr != nil {
		action.ErrorCode = errors.GetCode(opErr)
	}
	if err := e.actions.Record(ctx, action); err != nil {
		e.log.Warn("[Explorer] failed to record %s action: %v", kind, err)
	}
}
