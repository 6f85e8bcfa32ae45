// ABOUTME: Scope key construction for per-user persistence partitions
// ABOUTME: Keys preserve the legacy loop-chat storage layout

package store

// UserScope is the scope under which the current user record is stored.
// It is not partitioned: at most one user is logged in at a time.
const UserScope = "loop-chat-user"

// ChatScope returns the scope key for a user's chat collection.
func ChatScope(userID string) string {
	return "loop-chat-chats-" + userID
}

// AgentScope returns the scope key for a user's agent registry.
func AgentScope(userID string) string {
	return "loop-chat-agents-" + userID
}
