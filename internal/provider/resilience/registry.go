package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status summarizes the health of an upstream.
type Status string

// Upstream statuses, from best to worst.
const (
	StatusUp       Status = "UP"
	StatusDegraded Status = "DEGRADED"
	StatusDown     Status = "DOWN"
)

func (s Status) rank() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Health is a point-in-time view of an upstream.
type Health struct {
	Name    string
	Status  Status
	Breaker gobreaker.State
	Counts  gobreaker.Counts

	// LastSuccessAt and LastFailureAt are zero until the first outcome.
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Registry keeps the clients of all upstreams and their latest outcomes.
type Registry struct {
	mu        sync.RWMutex
	now       func() time.Time
	upstreams map[string]*upstream
}

type upstream struct {
	client        *Client
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastError     string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces time.Now for outcome timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{now: time.Now, upstreams: make(map[string]*upstream)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c under its name, replacing a previous client of that name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreams[c.Name()] = &upstream{client: c}
}

// RecordSuccess notes a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		u.lastSuccessAt = r.now()
	}
}

// RecordFailure notes a failed call. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		u.lastFailureAt = r.now()
		if err != nil {
			u.lastError = err.Error()
		}
	}
}

// Health returns the health of one upstream.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.upstreams[name]
	if !ok {
		return Health{}, false
	}
	return u.health(name), true
}

// Snapshot returns the health of every upstream, ordered by name.
func (r *Registry) Snapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Health, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		all = append(all, u.health(name))
	}
	slices.SortFunc(all, func(a, b Health) int { return strings.Compare(a.Name, b.Name) })
	return all
}

// Names returns the registered upstream names in order.
func (r *Registry) Names() []string {
	snapshot := r.Snapshot()
	names := make([]string, len(snapshot))
	for i, h := range snapshot {
		names[i] = h.Name
	}
	return names
}

// Overall is the worst status of all upstreams, StatusUp when none are
// registered.
func (r *Registry) Overall() Status {
	overall := StatusUp
	for _, h := range r.Snapshot() {
		if h.Status.rank() > overall.rank() {
			overall = h.Status
		}
	}
	return overall
}

// health derives the status from the breaker first. A closed breaker whose
// latest outcome was a failure is degraded.
func (u *upstream) health(name string) Health {
	h := Health{
		Name:          name,
		Status:        StatusUp,
		Breaker:       u.client.State(),
		Counts:        u.client.Counts(),
		LastSuccessAt: u.lastSuccessAt,
		LastFailureAt: u.lastFailureAt,
		LastError:     u.lastError,
	}
	switch {
	case h.Breaker == gobreaker.StateOpen:
		h.Status = StatusDown
	case h.Breaker == gobreaker.StateHalfOpen:
		h.Status = StatusDegraded
	case u.lastFailureAt.After(u.lastSuccessAt):
		h.Status = StatusDegraded
	}
	return h
}
