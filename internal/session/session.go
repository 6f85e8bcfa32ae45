// ABOUTME: Chat session store owning the chat collection and active-chat pointer
// ABOUTME: All mutations persist immediately and publish change events on commit

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopchat/loopchat/internal/registry"
	"github.com/loopchat/loopchat/internal/store"
)

// Store owns the ordered chat collection (most-recent-first), the
// active-chat pointer, and message history for one user. It depends on the
// agent registry for agent snapshots and on the persistence adapter for
// durability.
type Store struct {
	mu       sync.RWMutex
	kv       store.KV
	scope    string
	registry *registry.Registry
	chats    []*store.Chat
	activeID string
	notifier *Notifier
	logger   *slog.Logger
}

// New loads the chat collection for the given user. If the chat scope is
// empty, it is seeded with one chat bound to the default general agent and
// that chat becomes active; otherwise the first (most recent) chat does.
func New(ctx context.Context, kv store.KV, reg *registry.Registry, userID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:       kv,
		scope:    store.ChatScope(userID),
		registry: reg,
		notifier: NewNotifier(logger),
		logger:   logger.With("component", "session"),
	}

	data, err := kv.Load(ctx, s.scope)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := s.seed(ctx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("loading chat collection: %w", err)
	default:
		if err := json.Unmarshal(data, &s.chats); err != nil {
			return nil, fmt.Errorf("parsing chat collection: %w", err)
		}
		if len(s.chats) > 0 {
			s.activeID = s.chats[0].ID
		}
		s.logger.Debug("chat collection loaded", "chats", len(s.chats))
	}

	return s, nil
}

// seed creates the initial chat bound to the default general agent. A
// registry without any active agent leaves the collection empty.
func (s *Store) seed(ctx context.Context) error {
	agent, err := s.registry.Get(registry.DefaultChiefAgentID)
	if err != nil {
		active := s.registry.ListActive()
		if len(active) == 0 {
			s.logger.Warn("no active agent available, chat collection starts empty")
			return nil
		}
		agent = active[0]
	}

	chat := newChat(agent)
	s.chats = []*store.Chat{chat}
	s.activeID = chat.ID
	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("seeding initial chat: %w", err)
	}
	s.logger.Info("chat collection seeded", "chat_id", chat.ID, "agent_id", agent.ID)
	return nil
}

// newChat builds a chat with a denormalized snapshot of the agent and a
// single greeting message from it.
func newChat(agent *store.Agent) *store.Chat {
	now := time.Now()
	return &store.Chat{
		ID:          uuid.New().String(),
		AgentID:     agent.ID,
		AgentName:   agent.Name,
		AgentAvatar: agent.Avatar,
		Type:        agent.Type,
		Platform:    agent.Platform,
		WebhookURL:  agent.WebhookURL,
		Messages: []*store.Message{
			{
				ID:        uuid.New().String(),
				Sender:    store.SenderAgent,
				AgentName: agent.Name,
				Content:   greeting(agent.Name),
				Timestamp: now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func greeting(agentName string) string {
	return fmt.Sprintf("Hello! I'm %s. How can I help you today?", agentName)
}

// CreateChat builds a chat bound to the given agent, prepends it to the
// collection, and makes it the active chat. The agent is expected to be
// active; the store does not re-validate that here.
func (s *Store) CreateChat(ctx context.Context, agent *store.Agent) (*store.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := newChat(agent)
	s.chats = append([]*store.Chat{chat}, s.chats...)
	s.activeID = chat.ID
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("chat created", "chat_id", chat.ID, "agent_id", agent.ID)
	s.notifier.Publish(Event{Kind: EventChats, ChatID: chat.ID})
	return copyChat(chat), nil
}

// SetActiveChat moves the active pointer to the given chat. Unknown ids
// are ignored so stale UI references cannot corrupt the pointer.
func (s *Store) SetActiveChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(chatID) == nil {
		return
	}
	s.activeID = chatID
	s.notifier.Publish(Event{Kind: EventChats, ChatID: chatID})
}

// RenameChat sets the chat's display override. The underlying agent
// snapshot is never touched. Unknown ids are a no-op.
func (s *Store) RenameChat(ctx context.Context, chatID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.find(chatID)
	if chat == nil {
		return nil
	}
	chat.CustomName = newName
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.notifier.Publish(Event{Kind: EventChats, ChatID: chatID})
	return nil
}

// DeleteChat removes the chat. If it was active, the pointer moves to the
// first remaining chat, or becomes empty when none remain.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.chats)
	s.removeChats(func(c *store.Chat) bool { return c.ID == chatID })
	if len(s.chats) == before {
		return nil
	}
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.logger.Info("chat deleted", "chat_id", chatID)
	s.notifier.Publish(Event{Kind: EventChats, ChatID: chatID})
	return nil
}

// DeleteAgent removes the agent from the registry and cascade-deletes every
// chat bound to it. Both mutations commit inside one critical section so
// observers never see one without the other.
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Remove(ctx, agentID); err != nil {
		return err
	}

	before := len(s.chats)
	s.removeChats(func(c *store.Chat) bool { return c.AgentID == agentID })
	if len(s.chats) != before {
		if err := s.persist(ctx); err != nil {
			return err
		}
	}
	s.logger.Info("agent deleted with chat cascade",
		"agent_id", agentID,
		"chats_removed", before-len(s.chats))

	s.notifier.Publish(Event{Kind: EventAgents})
	s.notifier.Publish(Event{Kind: EventChats})
	return nil
}

// AppendMessage appends a message to the chat's history and bumps its
// UpdatedAt. History only ever grows; nothing is mutated or removed.
func (s *Store) AppendMessage(ctx context.Context, chatID string, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.find(chatID)
	if chat == nil {
		return store.ErrNotFound
	}
	chat.Messages = append(chat.Messages, msg)
	chat.UpdatedAt = time.Now()
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.notifier.Publish(Event{Kind: EventChats, ChatID: chatID})
	return nil
}

// CurrentChat returns the chat the active pointer references, or nil.
func (s *Store) CurrentChat() *store.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat := s.find(s.activeID)
	if chat == nil {
		return nil
	}
	return copyChat(chat)
}

// Get returns the chat with the given id, or store.ErrNotFound.
func (s *Store) Get(chatID string) (*store.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat := s.find(chatID)
	if chat == nil {
		return nil, store.ErrNotFound
	}
	return copyChat(chat), nil
}

// Chats returns the collection in most-recent-first order.
func (s *Store) Chats() []*store.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, copyChat(c))
	}
	return out
}

// ActiveChatID returns the current active-chat pointer, "" when unset.
func (s *Store) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Registry returns the agent registry this store resolves agents against.
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// Notifier returns the change notifier for this store.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// DisplayName resolves a chat's display name: the custom name when set,
// otherwise the agent snapshot name.
func DisplayName(chat *store.Chat) string {
	if chat.CustomName != "" {
		return chat.CustomName
	}
	return chat.AgentName
}

// removeChats drops every chat matching the predicate and repairs the
// active pointer. Callers hold the write lock.
func (s *Store) removeChats(match func(*store.Chat) bool) {
	kept := s.chats[:0]
	activeRemoved := false
	for _, c := range s.chats {
		if match(c) {
			if c.ID == s.activeID {
				activeRemoved = true
			}
			continue
		}
		kept = append(kept, c)
	}
	s.chats = kept

	if activeRemoved {
		if len(s.chats) > 0 {
			s.activeID = s.chats[0].ID
		} else {
			s.activeID = ""
		}
	}
}

func (s *Store) find(chatID string) *store.Chat {
	if chatID == "" {
		return nil
	}
	for _, c := range s.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

// persist saves the whole collection, including when it is empty, so a
// reload never resurrects deleted chats. Callers hold the write lock.
func (s *Store) persist(ctx context.Context) error {
	chats := s.chats
	if chats == nil {
		chats = []*store.Chat{}
	}
	data, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("encoding chat collection: %w", err)
	}
	if err := s.kv.Save(ctx, s.scope, data); err != nil {
		return fmt.Errorf("persisting chat collection: %w", err)
	}
	return nil
}

// copyChat returns a value copy with its own message slice. Messages are
// append-only and never mutated, so sharing the message structs is safe.
func copyChat(c *store.Chat) *store.Chat {
	out := *c
	out.Messages = make([]*store.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}
