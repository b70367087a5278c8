// Package file implements the always-on file fallback channel. It has no
// external dependency, so it stays available even when every other channel
// is misconfigured or unreachable.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MEKXH/citegate/internal/approval"
	"github.com/MEKXH/citegate/internal/mailbox"
)

// Adapter writes approval instructions into the mailbox directory. The
// decision arrives asynchronously when the user (or the approve/reject
// command) writes `{"approved": true|false}` under the approval ID.
type Adapter struct {
	store *mailbox.FileStore
}

// New creates a file channel over the given mailbox.
func New(store *mailbox.FileStore) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) Name() string { return "file" }

// Notify publishes the instruction document and logs how to respond.
func (a *Adapter) Notify(ctx context.Context, req approval.Request) (*approval.Decision, error) {
	if err := a.store.PutRequest(req); err != nil {
		return nil, fmt.Errorf("write approval instructions: %w", err)
	}

	decisionPath := filepath.Join(a.store.Dir(), req.ID+".json")
	slog.Info("approval required",
		"approval_id", req.ID,
		"tool", req.ToolName,
		"preview", req.Preview,
		"deadline", req.Deadline)
	slog.Info("respond by writing a decision file",
		"approve", fmt.Sprintf(`echo '{"approved": true}' > %s`, decisionPath),
		"reject", fmt.Sprintf(`echo '{"approved": false}' > %s`, decisionPath))
	return nil, nil
}
