// ABOUTME: Tests for the message dispatcher
// ABOUTME: Verifies the send flow, pending-flag modes, and failure handling

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopchat/loopchat/internal/registry"
	"github.com/loopchat/loopchat/internal/session"
	"github.com/loopchat/loopchat/internal/store"
)

// fakeClient implements Client for testing. If block is non-nil, Respond
// waits on it before returning, letting tests observe in-flight state.
type fakeClient struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{}
	lastReq *Request
	calls   int
}

func (f *fakeClient) Respond(ctx context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.lastReq = req
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: f.reply}, nil
}

func (f *fakeClient) last() *Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func newTestDispatcher(t *testing.T, client Client, mode PendingMode) (*Dispatcher, *session.Store, *registry.Registry) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	reg, err := registry.New(ctx, kv, "u1", nil)
	require.NoError(t, err)
	sessions, err := session.New(ctx, kv, reg, "u1", nil)
	require.NoError(t, err)
	return New(sessions, client, mode, nil), sessions, reg
}

func messageCount(t *testing.T, sessions *session.Store, chatID string) int {
	chat, err := sessions.Get(chatID)
	require.NoError(t, err)
	return len(chat.Messages)
}

func TestSend_SuccessAppendsUserThenAgentMessage(t *testing.T) {
	client := &fakeClient{reply: "On it."}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)
	ctx := context.Background()

	chatID := sessions.ActiveChatID()
	before := messageCount(t, sessions, chatID)

	require.NoError(t, d.Send(ctx, "  Hello  ", chatID))

	chat, err := sessions.Get(chatID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, before+2)

	userMsg := chat.Messages[before]
	assert.Equal(t, store.SenderUser, userMsg.Sender)
	assert.Equal(t, "Hello", userMsg.Content, "content is trimmed")
	assert.Empty(t, userMsg.AgentName)

	agentMsg := chat.Messages[before+1]
	assert.Equal(t, store.SenderAgent, agentMsg.Sender)
	assert.Equal(t, chat.AgentName, agentMsg.AgentName)
	assert.Equal(t, "On it.", agentMsg.Content)

	assert.False(t, d.Pending(), "pending clears after success")
}

func TestSend_DefaultsToActiveChat(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)

	chatID := sessions.ActiveChatID()
	before := messageCount(t, sessions, chatID)

	require.NoError(t, d.Send(context.Background(), "Hello", ""))
	assert.Equal(t, before+2, messageCount(t, sessions, chatID))
}

func TestSend_EmptyContentDeclinesSilently(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)

	chatID := sessions.ActiveChatID()
	before := messageCount(t, sessions, chatID)

	require.NoError(t, d.Send(context.Background(), "   \t  ", chatID))
	assert.Equal(t, before, messageCount(t, sessions, chatID))
	assert.Zero(t, client.calls)
}

func TestSend_UnknownChatDeclinesSilently(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	d, _, _ := newTestDispatcher(t, client, PendingGlobal)

	require.NoError(t, d.Send(context.Background(), "Hello", "no-such-chat"))
	assert.Zero(t, client.calls)
}

func TestSend_ClientFailureKeepsUserMessageAndClearsPending(t *testing.T) {
	client := &fakeClient{err: errors.New("webhook down")}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)

	chatID := sessions.ActiveChatID()
	before := messageCount(t, sessions, chatID)

	err := d.Send(context.Background(), "Hello", chatID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent dispatch failed")

	// User message committed, no agent reply appended
	chat, getErr := sessions.Get(chatID)
	require.NoError(t, getErr)
	require.Len(t, chat.Messages, before+1)
	assert.Equal(t, store.SenderUser, chat.Messages[before].Sender)

	assert.False(t, d.Pending(), "pending clears after failure")
}

func TestSend_PassesAgentIdentityAndHistoryToClient(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)

	chatID := sessions.ActiveChatID()
	require.NoError(t, d.Send(context.Background(), "Hello", chatID))

	req := client.last()
	require.NotNil(t, req)
	chat, err := sessions.Get(chatID)
	require.NoError(t, err)
	assert.Equal(t, chat.AgentID, req.AgentID)
	assert.Equal(t, chat.AgentName, req.AgentName)
	assert.Equal(t, chat.WebhookURL, req.WebhookURL)
	assert.Equal(t, "Hello", req.Message)
	// History is the chat state before this send: just the greeting
	require.Len(t, req.History, 1)
	assert.Equal(t, store.SenderAgent, req.History[0].Sender)
}

func TestSend_HistoryIsCapped(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)
	ctx := context.Background()

	chatID := sessions.ActiveChatID()
	for i := 0; i < historyLimit+5; i++ {
		require.NoError(t, sessions.AppendMessage(ctx, chatID, &store.Message{
			ID:      fmt.Sprintf("filler-%d", i),
			Sender:  store.SenderUser,
			Content: "filler",
		}))
	}

	require.NoError(t, d.Send(ctx, "Hello", chatID))
	assert.Len(t, client.last().History, historyLimit)
}

func TestPending_GlobalModeShowsPendingForAllChats(t *testing.T) {
	client := &fakeClient{reply: "ok", block: make(chan struct{})}
	d, sessions, reg := newTestDispatcher(t, client, PendingGlobal)
	ctx := context.Background()

	dev, err := reg.Get(registry.DefaultDevAgentID)
	require.NoError(t, err)
	otherChat, err := sessions.CreateChat(ctx, dev)
	require.NoError(t, err)
	target := sessions.Chats()[1]

	done := make(chan error, 1)
	go func() { done <- d.Send(ctx, "Hello", target.ID) }()

	require.Eventually(t, d.Pending, time.Second, 5*time.Millisecond)
	// The legacy single flag: an unrelated chat also shows pending
	assert.True(t, d.PendingChat(otherChat.ID))
	assert.True(t, d.PendingChat(target.ID))

	close(client.block)
	require.NoError(t, <-done)
	assert.False(t, d.Pending())
	assert.False(t, d.PendingChat(otherChat.ID))
}

func TestPending_PerChatModeScopesToDispatchedChat(t *testing.T) {
	client := &fakeClient{reply: "ok", block: make(chan struct{})}
	d, sessions, reg := newTestDispatcher(t, client, PendingPerChat)
	ctx := context.Background()

	dev, err := reg.Get(registry.DefaultDevAgentID)
	require.NoError(t, err)
	otherChat, err := sessions.CreateChat(ctx, dev)
	require.NoError(t, err)
	target := sessions.Chats()[1]

	done := make(chan error, 1)
	go func() { done <- d.Send(ctx, "Hello", target.ID) }()

	require.Eventually(t, func() bool { return d.PendingChat(target.ID) }, time.Second, 5*time.Millisecond)
	assert.False(t, d.PendingChat(otherChat.ID))
	assert.True(t, d.Pending())

	close(client.block)
	require.NoError(t, <-done)
	assert.False(t, d.PendingChat(target.ID))
}

func TestSend_InterleavedMutationsDoNotCorruptState(t *testing.T) {
	client := &fakeClient{reply: "done", block: make(chan struct{})}
	d, sessions, reg := newTestDispatcher(t, client, PendingGlobal)
	ctx := context.Background()

	dev, err := reg.Get(registry.DefaultDevAgentID)
	require.NoError(t, err)
	otherChat, err := sessions.CreateChat(ctx, dev)
	require.NoError(t, err)
	target := sessions.Chats()[1]

	done := make(chan error, 1)
	go func() { done <- d.Send(ctx, "Hello", target.ID) }()
	require.Eventually(t, d.Pending, time.Second, 5*time.Millisecond)

	// While the dispatch is in flight: switch, rename, delete an
	// unrelated chat
	sessions.SetActiveChat(otherChat.ID)
	require.NoError(t, sessions.RenameChat(ctx, otherChat.ID, "Other"))
	require.NoError(t, sessions.DeleteChat(ctx, otherChat.ID))

	close(client.block)
	require.NoError(t, <-done)

	// The reply landed on the target chat
	chat, err := sessions.Get(target.ID)
	require.NoError(t, err)
	last := chat.Messages[len(chat.Messages)-1]
	assert.Equal(t, store.SenderAgent, last.Sender)
	assert.Equal(t, "done", last.Content)
}

func TestSend_ChatDeletedMidFlightDropsReply(t *testing.T) {
	client := &fakeClient{reply: "late", block: make(chan struct{})}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)
	ctx := context.Background()

	target := sessions.ActiveChatID()
	done := make(chan error, 1)
	go func() { done <- d.Send(ctx, "Hello", target) }()
	require.Eventually(t, d.Pending, time.Second, 5*time.Millisecond)

	require.NoError(t, sessions.DeleteChat(ctx, target))
	close(client.block)

	require.NoError(t, <-done)
	assert.False(t, d.Pending())
	_, err := sessions.Get(target)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSend_PublishesPendingEvents(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	d, sessions, _ := newTestDispatcher(t, client, PendingGlobal)
	ctx := context.Background()

	events, _ := sessions.Notifier().Subscribe(ctx)
	require.NoError(t, d.Send(ctx, "Hello", sessions.ActiveChatID()))

	var pendingEvents int
	for {
		select {
		case evt := <-events:
			if evt.Kind == session.EventPending {
				pendingEvents++
			}
		default:
			assert.Equal(t, 2, pendingEvents, "one set, one clear")
			return
		}
	}
}
