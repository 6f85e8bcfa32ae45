// ABOUTME: Message dispatcher performing the single logical send operation
// ABOUTME: Appends the user message, tracks pending state, and records the agent reply

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopchat/loopchat/internal/session"
	"github.com/loopchat/loopchat/internal/store"
)

// PendingMode selects how the "response outstanding" flag is scoped.
type PendingMode string

const (
	// PendingGlobal is the legacy behavior: one flag for the whole
	// session, so a send in any chat shows as pending everywhere.
	PendingGlobal PendingMode = "global"
	// PendingPerChat scopes the flag to the chat being dispatched.
	PendingPerChat PendingMode = "per-chat"
)

// historyLimit is how many recent messages accompany a webhook call.
const historyLimit = 10

// Dispatcher orchestrates sending a user message: append it, mark pending,
// invoke the agent client, and append the reply or report the failure.
type Dispatcher struct {
	sessions *session.Store
	client   Client
	mode     PendingMode
	logger   *slog.Logger

	mu          sync.Mutex
	pendingAll  int
	pendingChat map[string]int
}

// New creates a dispatcher. Pass nil logger for default.
func New(sessions *session.Store, client Client, mode PendingMode, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = PendingGlobal
	}
	return &Dispatcher{
		sessions:    sessions,
		client:      client,
		mode:        mode,
		logger:      logger.With("component", "dispatch"),
		pendingChat: make(map[string]int),
	}
}

// Send performs one logical send to the given chat ("" targets the active
// chat). Empty content and unknown chats decline silently; a failing agent
// call is logged and returned, with the user message already committed and
// the pending flag cleared either way.
func (d *Dispatcher) Send(ctx context.Context, content, chatID string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if chatID == "" {
		chatID = d.sessions.ActiveChatID()
	}
	chat, err := d.sessions.Get(chatID)
	if err != nil {
		d.logger.Debug("send declined, chat not found", "chat_id", chatID)
		return nil
	}

	userMsg := &store.Message{
		ID:        uuid.New().String(),
		Sender:    store.SenderUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	if err := d.sessions.AppendMessage(ctx, chatID, userMsg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("recording user message: %w", err)
	}

	d.setPending(chatID, true)
	defer d.setPending(chatID, false)

	resp, err := d.client.Respond(ctx, &Request{
		AgentID:    chat.AgentID,
		AgentName:  chat.AgentName,
		WebhookURL: chat.WebhookURL,
		Message:    content,
		History:    recentHistory(chat.Messages),
	})
	if err != nil {
		d.logger.Error("agent dispatch failed",
			"error", err,
			"chat_id", chatID,
			"agent_id", chat.AgentID)
		return fmt.Errorf("agent dispatch failed: %w", err)
	}

	agentMsg := &store.Message{
		ID:        uuid.New().String(),
		Sender:    store.SenderAgent,
		AgentName: chat.AgentName,
		Content:   resp.Content,
		Timestamp: time.Now(),
	}
	if err := d.sessions.AppendMessage(ctx, chatID, agentMsg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Chat was deleted while the call was in flight; drop the reply
			d.logger.Debug("chat gone before reply landed", "chat_id", chatID)
			return nil
		}
		return fmt.Errorf("recording agent message: %w", err)
	}
	return nil
}

// Pending reports whether any dispatch is outstanding.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == PendingGlobal {
		return d.pendingAll > 0
	}
	return len(d.pendingChat) > 0
}

// PendingChat reports whether the given chat shows as pending. In global
// mode every chat shows pending while any dispatch is outstanding.
func (d *Dispatcher) PendingChat(chatID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == PendingGlobal {
		return d.pendingAll > 0
	}
	return d.pendingChat[chatID] > 0
}

func (d *Dispatcher) setPending(chatID string, on bool) {
	d.mu.Lock()
	delta := 1
	if !on {
		delta = -1
	}
	d.pendingAll += delta
	d.pendingChat[chatID] += delta
	if d.pendingChat[chatID] <= 0 {
		delete(d.pendingChat, chatID)
	}
	d.mu.Unlock()

	d.sessions.Notifier().Publish(session.Event{Kind: session.EventPending, ChatID: chatID})
}

// recentHistory returns the trailing messages sent along with a dispatch.
func recentHistory(messages []*store.Message) []*store.Message {
	if len(messages) <= historyLimit {
		return messages
	}
	return messages[len(messages)-historyLimit:]
}
