// ABOUTME: Identity collaborator supplying the current user and its scope key
// ABOUTME: Login is simulated; logout discards the user's persisted chat state

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loopchat/loopchat/internal/store"
)

// ErrCredentialsRequired is returned when email or password is empty.
var ErrCredentialsRequired = errors.New("email and password are required")

// User is the current user record. The core only uses ID as the
// persistence scope key; the display fields are read by the UI shell.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager tracks the logged-in user. Credential verification belongs to an
// external identity provider; this manager only records its outcome.
type Manager struct {
	mu      sync.RWMutex
	kv      store.KV
	current *User
	logger  *slog.Logger
}

// NewManager loads any previously logged-in user from the persistence
// adapter. A corrupt user record is discarded rather than surfaced.
func NewManager(ctx context.Context, kv store.KV, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		kv:     kv,
		logger: logger.With("component", "identity"),
	}

	data, err := kv.Load(ctx, store.UserScope)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Nobody logged in
	case err != nil:
		return nil, fmt.Errorf("loading user record: %w", err)
	default:
		var user User
		if err := json.Unmarshal(data, &user); err != nil {
			m.logger.Warn("discarding corrupt user record", "error", err)
			if err := kv.Delete(ctx, store.UserScope); err != nil {
				return nil, fmt.Errorf("clearing corrupt user record: %w", err)
			}
		} else {
			m.current = &user
			m.logger.Debug("user restored", "user_id", user.ID)
		}
	}

	return m, nil
}

// Current returns the logged-in user, or nil.
func (m *Manager) Current() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// Login records a user session for the given credentials and persists it.
// The display name is derived from the email's local part.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	localPart := email
	if at := strings.Index(email, "@"); at > 0 {
		localPart = email[:at]
	}
	user := &User{
		ID:        fmt.Sprintf("%d", time.Now().UnixMilli()),
		Email:     email,
		Name:      localPart,
		Avatar:    fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=3b82f6&color=fff", localPart),
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encoding user record: %w", err)
	}
	if err := m.kv.Save(ctx, store.UserScope, data); err != nil {
		return nil, fmt.Errorf("persisting user record: %w", err)
	}

	m.mu.Lock()
	m.current = user
	m.mu.Unlock()

	m.logger.Info("user logged in", "user_id", user.ID, "email", email)
	u := *user
	return &u, nil
}

// Logout clears the user record and discards the user's persisted chat and
// agent scopes. Other users' scopes are untouched.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	user := m.current
	m.current = nil
	m.mu.Unlock()

	if user == nil {
		return nil
	}

	if err := m.kv.Delete(ctx, store.UserScope); err != nil {
		return fmt.Errorf("clearing user record: %w", err)
	}
	if err := m.kv.Delete(ctx, store.ChatScope(user.ID)); err != nil {
		return fmt.Errorf("discarding chat scope: %w", err)
	}
	if err := m.kv.Delete(ctx, store.AgentScope(user.ID)); err != nil {
		return fmt.Errorf("discarding agent scope: %w", err)
	}

	m.logger.Info("user logged out", "user_id", user.ID)
	return nil
}
