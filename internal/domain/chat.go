package domain

// ChatMessage is the provider-agnostic chat message shape used by the
// assistant gateway.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantRequest is everything the assistant gateway needs for one reply.
// History holds prior turns in chronological order and never includes Text.
type AssistantRequest struct {
	SessionID string
	Persona   string
	History   []ChatMessage
	Text      string
}
