package approval

import "errors"

var (
	// ErrDuplicateID is returned by Register when the ID is already tracked.
	ErrDuplicateID = errors.New("approval: duplicate request id")

	// ErrNotFound is returned when no request exists for the given ID.
	ErrNotFound = errors.New("approval: request not found")

	// ErrInvalidID is returned when an ID does not match the token grammar.
	ErrInvalidID = errors.New("approval: invalid request id")

	// ErrAlreadyResolved marks a decision that arrived after the request
	// reached a terminal state. Callers treat it as an idempotent no-op.
	ErrAlreadyResolved = errors.New("approval: already resolved")

	// ErrTimeout is returned when no channel resolved before the deadline.
	// Policy resolves the request as rejected, but the middleware surfaces
	// it distinctly from an explicit user rejection.
	ErrTimeout = errors.New("approval: request timed out")

	// ErrAllChannelsFailed is returned when every notification channel
	// failed to send. The file fallback has no external dependency, so in
	// practice this means it was explicitly disabled.
	ErrAllChannelsFailed = errors.New("approval: all notification channels failed")
)
