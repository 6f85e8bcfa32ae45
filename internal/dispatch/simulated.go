// ABOUTME: Simulated agent client returning canned replies after a randomized delay
// ABOUTME: Replies are keyed by agent id with a generic fallback set

package dispatch

import (
	"context"
	"math/rand"
	"time"

	"github.com/loopchat/loopchat/internal/registry"
)

var cannedReplies = map[string][]string{
	registry.DefaultChiefAgentID: {
		"I'll analyze your request and route it to the right agent.",
		"Let me look into that and find the best way to help you.",
		"Got it! I'll coordinate with the specialist agents on this.",
	},
	registry.DefaultDevAgentID: {
		"Great, I can help with the development side. Here's my suggestion...",
		"That's an interesting programming challenge. Let me propose a solution.",
		"To solve this technical problem, I'd recommend the following approach...",
	},
	registry.DefaultDesignAgentID: {
		"Nice! I'll put together a clean design for your project.",
		"Here are some creative ideas to improve the user experience.",
		"Let me propose an elegant, modern design direction for this.",
	},
}

// genericReplies is the fallback for agents without a dedicated set.
var genericReplies = cannedReplies[registry.DefaultChiefAgentID]

// SimulatedClient stands in for a remote responder: it picks a random
// canned reply keyed by agent identity after a randomized delay.
type SimulatedClient struct {
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSimulatedClient creates a simulated client with the legacy 1-3s
// response delay.
func NewSimulatedClient() *SimulatedClient {
	return &SimulatedClient{minDelay: time.Second, maxDelay: 3 * time.Second}
}

// NewSimulatedClientWithDelay creates a simulated client with explicit
// delay bounds. Tests pass zero for instant replies.
func NewSimulatedClientWithDelay(minDelay, maxDelay time.Duration) *SimulatedClient {
	return &SimulatedClient{minDelay: minDelay, maxDelay: maxDelay}
}

func (c *SimulatedClient) Respond(ctx context.Context, req *Request) (*Response, error) {
	delay := c.minDelay
	if c.maxDelay > c.minDelay {
		delay += time.Duration(rand.Int63n(int64(c.maxDelay - c.minDelay)))
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	replies, ok := cannedReplies[req.AgentID]
	if !ok {
		replies = genericReplies
	}
	return &Response{Content: replies[rand.Intn(len(replies))]}, nil
}
