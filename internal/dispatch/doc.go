// ABOUTME: Package documentation for the dispatch package
// ABOUTME: Explains the send flow and the injected agent client strategy

// Package dispatch performs the single logical "send" operation: commit the
// user message first, mark a pending state, invoke the agent client, then
// commit the reply. A failed agent call leaves the user message in history,
// clears the pending flag, and surfaces the error; it never appends a
// fabricated reply.
//
// The agent endpoint is an injected Client. SimulatedClient fakes a remote
// responder with canned replies and a randomized delay; WebhookClient is
// the production implementation posting to the agent's configured webhook.
//
// Whether the pending flag is platform-wide or per chat is a configuration
// choice (PendingMode). The legacy behavior is a single global flag; it is
// kept as the default rather than silently fixed.
package dispatch
