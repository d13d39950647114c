package domain

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single persisted message in a session. Content is immutable;
// only Feedback is ever set after creation.
type Turn struct {
	TurnID    string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
	Feedback  *TurnFeedback
}

// TurnFeedback is the helpfulness annotation attached to an assistant turn.
type TurnFeedback struct {
	Helpful       bool
	NeedsMoreInfo bool
	FeedbackAt    time.Time
}

// FeedbackRecord is the append-only analytics entry written for every
// feedback submission.
type FeedbackRecord struct {
	RecordID      string
	SessionID     string
	TurnID        string
	Helpful       bool
	NeedsMoreInfo bool
	CreatedAt     time.Time
}
