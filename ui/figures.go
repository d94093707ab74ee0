package ui

import (
	"context"
	"sync"

	"datalens/domain/plot"
)

// FigureCache is the chart renderer handoff point: the app pushes each
// new figure description in, the figure endpoint serves the latest one
// to the browser-side renderer. Each render overwrites the previous
// figure for that session.
type FigureCache struct {
	mu      sync.RWMutex
	figures map[string]*plot.Figure
}

// NewFigureCache creates an empty cache.
func NewFigureCache() *FigureCache {
	return &FigureCache{figures: make(map[string]*plot.Figure)}
}

// Render implements ports.ChartRenderer.
func (c *FigureCache) Render(_ context.Context, sessionID string, fig *plot.Figure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.figures[sessionID] = fig
	return nil
}

// Latest returns the most recently rendered figure for a session, or
// nil when none has been produced yet.
func (c *FigureCache) Latest(sessionID string) *plot.Figure {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.figures[sessionID]
}

// Drop removes a session's figure.
func (c *FigureCache) Drop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.figures, sessionID)
}
