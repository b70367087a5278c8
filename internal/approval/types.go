package approval

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired || s == StatusCancelled
}

// Request is one pending approval cycle.
type Request struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Preview   string         `json:"preview"`
	Args      map[string]any `json:"args,omitempty"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Deadline  time.Time      `json:"deadline"`
}

// Decision is a terminal outcome for one approval request.
type Decision struct {
	ID        string    `json:"approval_id"`
	Approved  bool      `json:"approved"`
	Channel   string    `json:"channel"`
	Actor     string    `json:"actor,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Status returns the terminal status this decision carries.
func (d Decision) Status() Status {
	if d.Approved {
		return StatusApproved
	}
	return StatusRejected
}

// Approval IDs double as storage keys, so the grammar is strict: no
// separators, no dots, nothing a path traversal payload could smuggle in.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidID reports whether id matches the approval ID token grammar.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID generates a fresh approval ID.
func NewID() string {
	return uuid.NewString()
}
