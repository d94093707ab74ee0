package ports

import (
	"context"

	"datalens/models"
)

// ActionLog persists the per-action audit trail. Implementations must
// tolerate being absent: callers nil-check the port and skip logging
// when no database is configured.
type ActionLog interface {
	Record(ctx context.Context, action *models.Action) error
	Recent(ctx context.Context, limit int) ([]*models.Action, error)
}
