package brain

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient provides deterministic local replies when no inference endpoint
// is configured.
type MockClient struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]Message
}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) SetReply(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = text
}

func (c *MockClient) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns every message list this client has been asked to complete.
func (c *MockClient) Calls() [][]Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]Message, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *MockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	recorded := make([]Message, len(messages))
	copy(recorded, messages)
	c.calls = append(c.calls, recorded)

	if c.err != nil {
		return "", c.err
	}
	if c.reply != "" {
		return c.reply, nil
	}

	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = strings.TrimSpace(messages[i].Content)
			break
		}
	}
	if last == "" {
		return "I am listening.", nil
	}
	return fmt.Sprintf("I heard you: %s", last), nil
}
