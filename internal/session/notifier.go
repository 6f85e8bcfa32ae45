// ABOUTME: In-memory fan-out notifier for committed state mutations
// ABOUTME: Publishes change events to all subscribers so UI layers react without polling

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// EventKind identifies which part of the state changed.
type EventKind string

const (
	// EventChats signals a change to the chat collection, a chat's
	// messages, or the active-chat pointer.
	EventChats EventKind = "chats"
	// EventAgents signals a change to the agent registry.
	EventAgents EventKind = "agents"
	// EventPending signals a pending-flag transition on the dispatcher.
	EventPending EventKind = "pending"
)

// Event describes one committed mutation. ChatID is set when the change
// concerns a single chat.
type Event struct {
	Kind   EventKind
	ChatID string
}

// Notifier provides in-memory pub/sub for state change events. Subscribers
// receive events as mutations are committed; the core never depends on any
// specific UI framework.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *slog.Logger
}

// NewNotifier creates a notifier. Pass nil logger for default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers a subscriber for change events. Returns a channel
// that receives events and a subscription ID for later unsubscription.
// The subscription is automatically cleaned up when ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	n.mu.Lock()
	n.subscribers[subID] = ch
	n.mu.Unlock()

	n.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		n.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (n *Notifier) Publish(event Event) {
	n.mu.RLock()
	targets := make([]chan Event, 0, len(n.subscribers))
	for _, ch := range n.subscribers {
		targets = append(targets, ch)
	}
	n.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
			// Sent
		default:
			n.logger.Debug("dropped event for slow subscriber", "kind", event.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.subscribers[subID]
	if !ok {
		return
	}
	delete(n.subscribers, subID)
	close(ch)

	n.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for subID, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, subID)
	}

	n.logger.Debug("notifier closed")
}
