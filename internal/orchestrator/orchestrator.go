// Package orchestrator drives one approval cycle: register the request,
// notify every enabled channel, race their outcomes and the mailbox against
// the deadline, and resolve the registry exactly once.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
	"github.com/MEKXH/citegate/internal/channel"
	"github.com/MEKXH/citegate/internal/mailbox"
)

// Options tune one orchestrator instance.
type Options struct {
	// Timeout is the approval deadline, fixed at registration and never
	// extended by partial channel activity.
	Timeout time.Duration
	// PollInterval bounds how often the mailbox is checked for decisions
	// written by another process.
	PollInterval time.Duration
	// Grace is how long resolved state is retained for late observers
	// before the registry entry and mailbox entry are removed.
	Grace time.Duration
	// MaxEntryAge bounds orphaned mailbox entries left by crashed
	// processes; the background sweeper reaps anything older.
	MaxEntryAge time.Duration
	// ApproveOnTimeout flips the default outcome at deadline. Off means
	// an unanswered request is rejected.
	ApproveOnTimeout bool
}

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.Grace <= 0 {
		o.Grace = time.Minute
	}
	if o.MaxEntryAge <= 0 {
		o.MaxEntryAge = 24 * time.Hour
	}
}

// Orchestrator resolves approval requests across channels and processes.
type Orchestrator struct {
	registry *approval.Registry
	store    mailbox.Store
	adapters []channel.Adapter
	opts     Options
	now      func() time.Time
}

// New creates an orchestrator over the given mailbox and adapter set.
func New(store mailbox.Store, adapters []channel.Adapter, opts Options) *Orchestrator {
	opts.normalize()
	return &Orchestrator{
		registry: approval.NewRegistry(),
		store:    store,
		adapters: adapters,
		opts:     opts,
		now:      time.Now,
	}
}

// Registry exposes the request registry, e.g. for listing pending requests.
func (o *Orchestrator) Registry() *approval.Registry { return o.registry }

// RequestApproval runs one approval cycle and returns the final decision.
//
// On timeout the returned decision carries the configured default outcome
// and the error wraps approval.ErrTimeout so the middleware can surface a
// timeout distinctly from an explicit rejection. Per-channel notification
// failures are logged, never propagated; only approval.ErrAllChannelsFailed
// aborts the cycle early.
func (o *Orchestrator) RequestApproval(ctx context.Context, toolName, preview string, args map[string]any) (approval.Decision, error) {
	req := approval.Request{
		ID:        approval.NewID(),
		ToolName:  toolName,
		Preview:   preview,
		Args:      args,
		CreatedAt: o.now().UTC(),
		Deadline:  o.now().UTC().Add(o.opts.Timeout),
	}
	if err := o.registry.Register(req); err != nil {
		return approval.Decision{}, err
	}

	resolved, err := o.registry.Resolved(req.ID)
	if err != nil {
		return approval.Decision{}, err
	}

	// cancel fans out to every still-running adapter and the mailbox
	// watch once a decision wins or the deadline passes.
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("approval requested",
		"approval_id", req.ID,
		"tool", toolName,
		"channels", len(o.adapters),
		"deadline", req.Deadline)

	if len(o.adapters) == 0 {
		_, _ = o.registry.Cancel(req.ID)
		o.registry.Remove(req.ID)
		return approval.Decision{}, approval.ErrAllChannelsFailed
	}

	allFailed := make(chan struct{}, 1)
	var failures atomic.Int32
	for _, a := range o.adapters {
		go func(a channel.Adapter) {
			decision, err := a.Notify(cctx, req)
			if err != nil {
				slog.Warn("channel notify failed",
					"approval_id", req.ID,
					"channel", a.Name(),
					"error", err)
				if int(failures.Add(1)) == len(o.adapters) {
					allFailed <- struct{}{}
				}
				return
			}
			if decision == nil {
				return // asynchronous channel, decision comes via mailbox
			}
			o.resolve(req.ID, *decision)
		}(a)
	}

	go o.watchMailbox(cctx, req.ID)

	timer := time.NewTimer(o.opts.Timeout)
	defer timer.Stop()

	select {
	case decision := <-resolved:
		cancel()
		o.scheduleCleanup(req.ID)
		slog.Info("approval resolved",
			"approval_id", req.ID,
			"approved", decision.Approved,
			"channel", decision.Channel)
		return decision, nil

	case <-timer.C:
		decision := approval.Decision{
			ID:        req.ID,
			Approved:  o.opts.ApproveOnTimeout,
			Channel:   "timeout",
			DecidedAt: o.now().UTC(),
		}
		var won bool
		if o.opts.ApproveOnTimeout {
			won, _ = o.registry.Resolve(req.ID, decision)
		} else {
			won, _ = o.registry.Expire(req.ID)
		}
		if !won {
			// A channel beat the deadline by a hair; honor it.
			decision := <-resolved
			cancel()
			o.scheduleCleanup(req.ID)
			return decision, nil
		}
		cancel()
		o.scheduleCleanup(req.ID)
		slog.Warn("approval timed out",
			"approval_id", req.ID,
			"tool", toolName,
			"timeout", o.opts.Timeout)
		return decision, fmt.Errorf("%s: %w", preview, approval.ErrTimeout)

	case <-allFailed:
		cancel()
		_, _ = o.registry.Cancel(req.ID)
		o.scheduleCleanup(req.ID)
		slog.Error("every notification channel failed", "approval_id", req.ID)
		return approval.Decision{}, approval.ErrAllChannelsFailed

	case <-ctx.Done():
		_, _ = o.registry.Cancel(req.ID)
		o.scheduleCleanup(req.ID)
		return approval.Decision{}, ctx.Err()
	}
}

// resolve records a decision in the registry; losers are a logged no-op.
func (o *Orchestrator) resolve(id string, decision approval.Decision) {
	won, err := o.registry.Resolve(id, decision)
	if err != nil {
		slog.Debug("decision for unknown request dropped",
			"approval_id", id,
			"channel", decision.Channel,
			"error", err)
		return
	}
	if !won {
		slog.Info("decision lost the race",
			"approval_id", id,
			"channel", decision.Channel,
			"approved", decision.Approved)
	}
}

// watchMailbox polls for decisions written by another process (the webhook
// receiver, or a user following the file channel instructions).
func (o *Orchestrator) watchMailbox(ctx context.Context, id string) {
	entry, err := mailbox.Watch(ctx, o.store, id, o.opts.PollInterval)
	if err != nil {
		return // cancelled, the cycle is over
	}
	o.resolve(id, entry.Decision())
}

// scheduleCleanup drops the registry and mailbox state after the grace
// period. Late webhook deliveries within the window still resolve as
// idempotent no-ops; after it they are dropped by the webhook receiver.
func (o *Orchestrator) scheduleCleanup(id string) {
	go func() {
		time.Sleep(o.opts.Grace)
		o.registry.Remove(id)
		if err := o.store.Cleanup(id); err != nil {
			slog.Warn("mailbox cleanup failed", "approval_id", id, "error", err)
		}
	}()
}

// RunSweeper reaps orphaned mailbox entries until ctx is done. It defends
// against orchestrator processes that crashed before their cleanup ran.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := o.store.Sweep(o.opts.MaxEntryAge)
			if err != nil {
				slog.Warn("mailbox sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("mailbox sweep reaped orphaned entries", "count", removed)
			}
		}
	}
}
