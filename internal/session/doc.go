// ABOUTME: Package documentation for the session package
// ABOUTME: Explains the chat session store and its change notification model

// Package session owns the per-user chat collection: ordered
// most-recent-first, with an active-chat pointer that always references an
// existing chat (or nothing). Chats are created only by binding to an
// agent, carry a denormalized snapshot of that agent taken at creation
// time, and start with a synthesized greeting. History is append-only.
//
// Deleting an agent cascades to its chats: both mutations commit under one
// lock and persist before any notification goes out, so observers never see
// the registry and the collection disagree.
//
// The Notifier is the observer seam between the core and whatever UI drives
// it: every committed mutation publishes an Event, publishes never block,
// and slow subscribers lose events rather than stalling the store.
package session
