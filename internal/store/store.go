// ABOUTME: Entity types and the persistence contract for loopchat state
// ABOUTME: Defines Agent, Chat, Message structs and the scoped KV interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested scope or entity does not exist
var ErrNotFound = errors.New("not found")

// Agent type constants
const (
	AgentTypeGeneral    = "general"
	AgentTypeSpecialist = "specialist"
)

// Agent platform constants
const (
	PlatformN8N  = "n8n"
	PlatformMake = "make"
)

// Message sender constants
const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// Agent is a configured virtual responder with routing and display metadata.
// Identity (ID) is stable for the agent's lifetime; everything else is
// mutable through the registry.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Platform    string    `json:"platform"`
	WebhookURL  string    `json:"webhookUrl"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Chat is one conversation thread bound to an agent snapshot. The agent
// fields are copied at creation time so later agent edits or deletion do
// not corrupt history display.
type Chat struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agentId"`
	AgentName   string     `json:"agentName"`
	AgentAvatar string     `json:"agentAvatar"`
	Type        string     `json:"type"`
	Platform    string     `json:"platform"`
	WebhookURL  string     `json:"webhookUrl"`
	CustomName  string     `json:"customName,omitempty"`
	Messages    []*Message `json:"messages"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Message is a single entry in a chat's append-only history.
// AgentName is set only when Sender is "agent".
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	AgentName string    `json:"agentName,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// KV is the persistence adapter: scoped load/save against a durable
// key-value medium. Load returns ErrNotFound for absent scopes.
type KV interface {
	Load(ctx context.Context, scope string) ([]byte, error)
	Save(ctx context.Context, scope string, value []byte) error
	Delete(ctx context.Context, scope string) error
	Close() error
}
