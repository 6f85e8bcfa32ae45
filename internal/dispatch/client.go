// ABOUTME: Agent client contract the dispatcher requires from the outside world
// ABOUTME: Implementations deliver a message to an agent endpoint and return its reply

package dispatch

import (
	"context"

	"github.com/loopchat/loopchat/internal/store"
)

// Request carries the agent identity, its endpoint, the outgoing message,
// and recent conversation history.
type Request struct {
	AgentID    string
	AgentName  string
	WebhookURL string
	Message    string
	History    []*store.Message
}

// Response is a successful agent reply.
type Response struct {
	Content string
}

// Client is the strategy seam for agent delivery: the simulated client for
// local runs and tests, the webhook client for production.
type Client interface {
	Respond(ctx context.Context, req *Request) (*Response, error)
}
