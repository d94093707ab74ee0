package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"datalens/internal"
	"datalens/ports"
)

// Registry maps session IDs to their Explorer. State is process-wide
// and session-scoped; it does not survive a restart.
type Registry struct {
	svc      ports.DataService
	renderer ports.ChartRenderer
	actions  ports.ActionLog
	log      *internal.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

type entry struct {
	explorer *Explorer
	lastSeen time.Time
}

// NewRegistry creates an explorer registry sharing one set of ports.
func NewRegistry(svc ports.DataService, renderer ports.ChartRenderer, actions ports.ActionLog, log *internal.Logger) *Registry {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Registry{
		svc:      svc,
		renderer: renderer,
		actions:  actions,
		log:      log,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// GetOrCreate returns the session's explorer, creating it on first use.
func (r *Registry) GetOrCreate(id uuid.UUID) *Explorer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = time.Now()
		return e.explorer
	}
	explorer := NewExplorer(id, r.svc, r.renderer, r.actions, r.log)
	r.sessions[id] = &entry{explorer: explorer, lastSeen: time.Now()}
	r.log.Info("[Registry] created explorer session %s", id)
	return explorer
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// PurgeIdle drops sessions idle for longer than maxIdle and returns
// how many were removed.
func (r *Registry) PurgeIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Info("[Registry] purged %d idle sessions", removed)
	}
	return removed
}
