// ABOUTME: Default agent set seeded into the registry on first use per user
// ABOUTME: The chief agent is the designated general agent for the initial chat

package registry

import (
	"time"

	"github.com/loopchat/loopchat/internal/store"
)

// Well-known ids for the seeded agents. These are stable identifiers, not
// generated uuids, so fresh installs resolve them predictably.
const (
	DefaultChiefAgentID  = "chief-agent"
	DefaultDevAgentID    = "dev-agent"
	DefaultDesignAgentID = "design-agent"
)

// DefaultAgents returns the agent set seeded on first use. The first entry
// is the general agent the initial chat is bound to.
func DefaultAgents() []*store.Agent {
	now := time.Now()
	return []*store.Agent{
		{
			ID:          DefaultChiefAgentID,
			Name:        "Chief Agent",
			Type:        store.AgentTypeGeneral,
			Platform:    store.PlatformN8N,
			WebhookURL:  "https://webhook.n8n.io/chef-agent",
			Avatar:      "🤖",
			Description: "Primary agent that routes tasks to the right specialist",
			IsActive:    true,
			CreatedAt:   now,
		},
		{
			ID:          DefaultDevAgentID,
			Name:        "Developer Agent",
			Type:        store.AgentTypeSpecialist,
			Platform:    store.PlatformN8N,
			WebhookURL:  "https://webhook.n8n.io/dev-agent",
			Avatar:      "💻",
			Description: "Specialized in software development",
			IsActive:    true,
			CreatedAt:   now,
		},
		{
			ID:          DefaultDesignAgentID,
			Name:        "Design Agent",
			Type:        store.AgentTypeSpecialist,
			Platform:    store.PlatformMake,
			WebhookURL:  "https://hook.make.com/design-agent",
			Avatar:      "🎨",
			Description: "Specialized in design work",
			IsActive:    true,
			CreatedAt:   now,
		},
	}
}
