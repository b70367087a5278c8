package mailbox

import (
	"sync"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
)

// MemoryStore keeps entries in process memory. It serves tests and
// single-process deployments where the webhook receiver runs in the same
// binary as the orchestrator.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Put stores the entry for id; the first writer wins.
func (s *MemoryStore) Put(id string, entry Entry) error {
	if !approval.ValidID(id) {
		return approval.ErrInvalidID
	}
	entry.ApprovalID = id
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return approval.ErrAlreadyResolved
	}
	s.entries[id] = entry
	return nil
}

// Get returns the entry for id if present.
func (s *MemoryStore) Get(id string) (Entry, bool, error) {
	if !approval.ValidID(id) {
		return Entry{}, false, approval.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	return entry, ok, nil
}

// Cleanup removes the entry for id.
func (s *MemoryStore) Cleanup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Sweep removes entries older than maxAge.
func (s *MemoryStore) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.entries {
		if entry.Timestamp.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
