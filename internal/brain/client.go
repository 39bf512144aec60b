package brain

import "context"

// Message is one conversational turn sent to the inference endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client produces one assistant reply for a full conversation. The messages
// slice is the complete prior history plus the new user turn; no windowing.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
