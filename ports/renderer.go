package ports

import (
	"context"

	"datalens/domain/plot"
)

// ChartRenderer consumes figure descriptions. The renderer itself is an
// external collaborator; the app only hands it the latest figure, each
// request overwriting the previous one.
type ChartRenderer interface {
	Render(ctx context.Context, sessionID string, fig *plot.Figure) error
}
