package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"datalens/internal/errors"
	"datalens/models"
	"datalens/ports"
)

// ActionLogRepository persists the per-session action audit trail.
type ActionLogRepository struct {
	db *sqlx.DB
}

// NewActionLogRepository creates a new PostgreSQL action log repository
func NewActionLogRepository(db *sqlx.DB) ports.ActionLog {
	return &ActionLogRepository{db: db}
}

// EnsureSchema creates the action log table if it is missing.
func (r *ActionLogRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS explorer_actions (
			id          UUID PRIMARY KEY,
			session_id  UUID NOT NULL,
			kind        TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			rows_before INTEGER NOT NULL DEFAULT 0,
			rows_after  INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			error_code  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return errors.Wrap(errors.DatabaseError("failed to ensure action log schema"), err.Error())
	}
	return nil
}

// Record inserts one action row. Missing IDs and timestamps are filled
// in so callers can pass a sparsely populated action.
func (r *ActionLogRepository) Record(ctx context.Context, action *models.Action) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO explorer_actions (
			id, session_id, kind, detail, rows_before, rows_after,
			duration_ms, error_code, created_at
		) VALUES (
			:id, :session_id, :kind, :detail, :rows_before, :rows_after,
			:duration_ms, :error_code, :created_at
		)
	`, action)
	if err != nil {
		return errors.Wrap(errors.DatabaseError("failed to record action"), err.Error())
	}
	return nil
}

// Recent returns the newest actions, most recent first.
func (r *ActionLogRepository) Recent(ctx context.Context, limit int) ([]*models.Action, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	var actions []*models.Action
	err := r.db.SelectContext(ctx, &actions, `
		SELECT id, session_id, kind, detail, rows_before, rows_after,
		       duration_ms, error_code, created_at
		FROM explorer_actions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError("failed to list actions"), err.Error())
	}
	return actions, nil
}
