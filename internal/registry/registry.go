// ABOUTME: Agent registry owning the per-user set of configured agents
// ABOUTME: Mutations persist the full insertion-order list after each change

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopchat/loopchat/internal/store"
)

// AgentDraft carries the caller-supplied fields for a new agent.
// The registry assigns the id and creation timestamp.
type AgentDraft struct {
	Name        string
	Avatar      string
	Description string
	Type        string
	Platform    string
	WebhookURL  string
	IsActive    bool
}

// AgentUpdate is a partial update; nil fields are left unchanged.
type AgentUpdate struct {
	Name        *string
	Avatar      *string
	Description *string
	Type        *string
	Platform    *string
	WebhookURL  *string
	IsActive    *bool
}

// Registry owns the set of configured agents for one user. All mutations
// are flushed to the agent scope of the persistence adapter immediately.
type Registry struct {
	mu     sync.RWMutex
	kv     store.KV
	scope  string
	agents []*store.Agent
	logger *slog.Logger
}

// New loads the agent registry for the given user, seeding the default
// agent set (and persisting it immediately) when the scope is empty.
func New(ctx context.Context, kv store.KV, userID string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		kv:     kv,
		scope:  store.AgentScope(userID),
		logger: logger.With("component", "registry"),
	}

	data, err := kv.Load(ctx, r.scope)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.agents = DefaultAgents()
		if err := r.persist(ctx); err != nil {
			return nil, fmt.Errorf("seeding default agents: %w", err)
		}
		r.logger.Info("agent registry seeded", "agents", len(r.agents))
	case err != nil:
		return nil, fmt.Errorf("loading agent registry: %w", err)
	default:
		if err := json.Unmarshal(data, &r.agents); err != nil {
			return nil, fmt.Errorf("parsing agent registry: %w", err)
		}
		r.logger.Debug("agent registry loaded", "agents", len(r.agents))
	}

	return r, nil
}

// Add assigns a new unique id and creation time, appends the agent to the
// set, persists, and returns the new agent.
func (r *Registry) Add(ctx context.Context, draft AgentDraft) (*store.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := &store.Agent{
		ID:          uuid.New().String(),
		Name:        draft.Name,
		Avatar:      draft.Avatar,
		Description: draft.Description,
		Type:        draft.Type,
		Platform:    draft.Platform,
		WebhookURL:  draft.WebhookURL,
		IsActive:    draft.IsActive,
		CreatedAt:   time.Now(),
	}
	r.agents = append(r.agents, agent)
	if err := r.persist(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("agent added", "agent_id", agent.ID, "name", agent.Name)
	return copyAgent(agent), nil
}

// Update merges the non-nil fields into the matching agent.
// Returns store.ErrNotFound if the id is absent.
func (r *Registry) Update(ctx context.Context, agentID string, update AgentUpdate) (*store.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.find(agentID)
	if agent == nil {
		return nil, store.ErrNotFound
	}

	if update.Name != nil {
		agent.Name = *update.Name
	}
	if update.Avatar != nil {
		agent.Avatar = *update.Avatar
	}
	if update.Description != nil {
		agent.Description = *update.Description
	}
	if update.Type != nil {
		agent.Type = *update.Type
	}
	if update.Platform != nil {
		agent.Platform = *update.Platform
	}
	if update.WebhookURL != nil {
		agent.WebhookURL = *update.WebhookURL
	}
	if update.IsActive != nil {
		agent.IsActive = *update.IsActive
	}

	if err := r.persist(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("agent updated", "agent_id", agentID)
	return copyAgent(agent), nil
}

// SetActive toggles an agent's activation state.
func (r *Registry) SetActive(ctx context.Context, agentID string, active bool) error {
	_, err := r.Update(ctx, agentID, AgentUpdate{IsActive: &active})
	return err
}

// Remove deletes the agent from the set. The caller is responsible for
// cascade-deleting the chats bound to it. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.agents[:0]
	removed := false
	for _, a := range r.agents {
		if a.ID == agentID {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	r.agents = kept
	if !removed {
		return nil
	}
	if err := r.persist(ctx); err != nil {
		return err
	}
	r.logger.Info("agent removed", "agent_id", agentID)
	return nil
}

// Get returns the agent with the given id, or store.ErrNotFound.
func (r *Registry) Get(agentID string) (*store.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent := r.find(agentID)
	if agent == nil {
		return nil, store.ErrNotFound
	}
	return copyAgent(agent), nil
}

// List returns all agents in insertion order.
func (r *Registry) List() []*store.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*store.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, copyAgent(a))
	}
	return out
}

// ListActive returns only agents with IsActive set, in insertion order.
// This is the set offered when creating a new chat.
func (r *Registry) ListActive() []*store.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*store.Agent
	for _, a := range r.agents {
		if a.IsActive {
			out = append(out, copyAgent(a))
		}
	}
	return out
}

func (r *Registry) find(agentID string) *store.Agent {
	for _, a := range r.agents {
		if a.ID == agentID {
			return a
		}
	}
	return nil
}

func (r *Registry) persist(ctx context.Context) error {
	data, err := json.Marshal(r.agents)
	if err != nil {
		return fmt.Errorf("encoding agent registry: %w", err)
	}
	if err := r.kv.Save(ctx, r.scope, data); err != nil {
		return fmt.Errorf("persisting agent registry: %w", err)
	}
	return nil
}

func copyAgent(a *store.Agent) *store.Agent {
	c := *a
	return &c
}
