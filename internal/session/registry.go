package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/logging"
	"cupsbridge/internal/metrics"
)

// DefaultRegistryLimit bounds the number of open sessions per registry.
const DefaultRegistryLimit = 1024

// Registry lists the open sessions in the order they were opened. The
// password dispatcher scans it to find the session owning a handle.
type Registry struct {
	mu      sync.RWMutex
	entries []*Session
	limit   int

	metrics *metrics.SessionMetrics
	log     zerolog.Logger
}

func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultRegistryLimit
	}
	return &Registry{limit: limit, log: zerolog.Nop()}
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry(DefaultRegistryLimit)
	r.metrics = metrics.NewSessionMetrics()
	r.log = logging.Component("registry")
	return r
})

// DefaultRegistry is the process-wide registry used when a session is opened
// without WithRegistry.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

func (r *Registry) add(s *Session) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.limit {
		return uuid.Nil, &ipperr.ResourceError{Resource: "session registry", Limit: r.limit}
	}
	token := uuid.New()
	r.entries = append(r.entries, s)
	r.metrics.SetOpen(len(r.entries))
	return token, nil
}

// remove deletes s and keeps the order of the remaining entries.
func (r *Registry) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e == s {
			r.entries = slices.Delete(r.entries, i, i+1)
			r.metrics.SetOpen(len(r.entries))
			return true
		}
	}
	return false
}

// Lookup returns the open session owning h, or nil.
func (r *Registry) Lookup(h cupsclient.Handle) *Session {
	return r.lookup(nil, h)
}

// lookup matches on handle and, when t is non-nil, on transport.
func (r *Registry) lookup(t Transport, h cupsclient.Handle) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.entries {
		if s.Handle() != h {
			continue
		}
		if t != nil && s.transport != t {
			continue
		}
		return s
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sessions returns the open sessions in registry order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Session(nil), r.entries...)
}
