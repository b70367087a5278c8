// Package channel defines the uniform notify capability every approval
// medium exposes, and the policy that decides which adapters run. The
// channel set is a fixed enumeration: local prompt, file fallback, and the
// supported remote platforms.
package channel

import (
	"context"

	"github.com/MEKXH/citegate/internal/approval"
)

// Adapter is one approval notification medium.
//
// Blocking adapters (the local prompt) run until the user answers or ctx is
// cancelled because another channel won, then return the decision directly.
// Asynchronous adapters (file fallback, remote platforms) only send the
// notification and return (nil, nil); their decision arrives later through
// the mailbox.
type Adapter interface {
	Name() string
	Notify(ctx context.Context, req approval.Request) (*approval.Decision, error)
}
