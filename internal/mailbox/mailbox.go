// Package mailbox is the cross-process handoff point for approval decisions.
// A webhook receiver (possibly on another host behind a shared filesystem)
// writes entries that the orchestrating process polls; the per-ID entry is
// the cross-process equivalent of the registry's mutex, so a Put must be
// all-or-nothing and the first writer must win.
package mailbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
)

// Entry is the persisted form of a decision, stored under its approval ID.
type Entry struct {
	ApprovalID string    `json:"approval_id"`
	Approved   bool      `json:"approved"`
	Channel    string    `json:"channel"`
	Actor      string    `json:"actor,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Decision converts the entry back into a registry decision.
func (e Entry) Decision() approval.Decision {
	return approval.Decision{
		ID:        e.ApprovalID,
		Approved:  e.Approved,
		Channel:   e.Channel,
		Actor:     e.Actor,
		DecidedAt: e.Timestamp,
	}
}

// Store is an atomic decision handoff keyed by approval ID. At most one
// entry ever becomes authoritative per ID: a second Put returns
// approval.ErrAlreadyResolved without touching the first entry.
type Store interface {
	Put(id string, entry Entry) error
	// Get is non-blocking; a false ok means the decision is still pending.
	Get(id string) (Entry, bool, error)
	// Cleanup removes the entry (and any companion documents) for an ID.
	Cleanup(id string) error
	// Sweep reaps entries older than maxAge regardless of resolution
	// state, bounding growth from crashed orchestrator processes.
	Sweep(maxAge time.Duration) (int, error)
}

// Watch polls the store until an entry for id appears or ctx is done.
// Read errors are treated as transient: the file contract allows users to
// write decision files by hand, so a poll may catch a half-written entry.
func Watch(ctx context.Context, s Store, id string, interval time.Duration) (Entry, error) {
	if !approval.ValidID(id) {
		return Entry{}, approval.ErrInvalidID
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		entry, ok, err := s.Get(id)
		if err != nil {
			slog.Debug("mailbox read failed, retrying", "approval_id", id, "error", err)
		}
		if ok {
			return entry, nil
		}
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
