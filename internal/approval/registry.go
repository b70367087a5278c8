package approval

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	request  Request
	decision Decision
	// resolved delivers the winning decision to the waiting orchestrator.
	// Buffered so the winner never blocks on a departed waiter.
	resolved chan Decision
}

// Registry is the authoritative in-memory state machine for approval
// lifecycles. Its per-ID status transition is the sole in-process mutual
// exclusion point: whichever caller performs the Pending to terminal
// transition first wins, everyone else is a logged no-op.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Register creates a pending entry for the request.
func (r *Registry) Register(req Request) error {
	if !ValidID(req.ID) {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[req.ID]; ok {
		return ErrDuplicateID
	}
	req.Status = StatusPending
	r.entries[req.ID] = &entry{
		request:  req,
		resolved: make(chan Decision, 1),
	}
	return nil
}

// Resolve attempts to transition the entry from pending to the decision's
// terminal state. The winner flag reports whether this call performed the
// transition; losers must treat the call as a no-op.
func (r *Registry) Resolve(id string, decision Decision) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.request.Status.Terminal() {
		slog.Debug("late decision dropped",
			"approval_id", id,
			"channel", decision.Channel,
			"status", e.request.Status)
		return false, nil
	}

	decision.ID = id
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = r.now().UTC()
	}
	e.request.Status = decision.Status()
	e.decision = decision
	e.resolved <- decision
	return true, nil
}

// Expire transitions the entry to expired if it is still pending past its
// deadline. Returns whether this call performed the transition.
func (r *Registry) Expire(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.request.Status.Terminal() {
		return false, nil
	}
	e.request.Status = StatusExpired
	e.decision = Decision{
		ID:        id,
		Approved:  false,
		Channel:   "timeout",
		DecidedAt: r.now().UTC(),
	}
	e.resolved <- e.decision
	return true, nil
}

// Cancel transitions a pending entry to cancelled.
func (r *Registry) Cancel(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.request.Status.Terminal() {
		return false, nil
	}
	e.request.Status = StatusCancelled
	e.decision = Decision{
		ID:        id,
		Approved:  false,
		Channel:   "cancelled",
		DecidedAt: r.now().UTC(),
	}
	e.resolved <- e.decision
	return true, nil
}

// Get returns the current snapshot of a request.
func (r *Registry) Get(id string) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return e.request, nil
}

// Resolved returns the channel that delivers the winning decision.
func (r *Registry) Resolved(id string) (<-chan Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.resolved, nil
}

// Remove drops the entry after its post-resolution grace period.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Pending returns a snapshot of all non-terminal requests.
func (r *Registry) Pending() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]Request, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.request.Status.Terminal() {
			pending = append(pending, e.request)
		}
	}
	return pending
}
