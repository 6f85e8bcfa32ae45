// ABOUTME: Package documentation for the store package
// ABOUTME: Explains entity types and the scoped persistence contract

// Package store defines the persisted entity types (Agent, Chat, Message)
// and the persistence adapter contract used by the registry, session store
// and identity manager.
//
// Persistence is a scoped key-value contract: each user gets two scopes,
// one holding the chat collection and one holding the agent registry, each
// serialized as a single JSON document. The contract is deliberately small
// (Load/Save/Delete) so the durable medium is swappable; SQLiteKV is the
// production implementation and MemoryKV is the in-process double used by
// tests and database-less runs.
//
// Absent scopes surface as ErrNotFound rather than empty values so callers
// can distinguish "never seeded" from "seeded then emptied".
package store
