// Package session owns the persisted client session: the bearer token
// pair and the cached user profile. No other component reads or writes
// credential storage directly.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Storage keys. Clearing all three is the definition of "logged out".
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// ErrNoSession is returned when an operation needs stored credentials
// and none exist.
var ErrNoSession = errors.New("no active session")

// User is the cached profile snapshot persisted alongside the tokens.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	UserType   string    `json:"user_type"`
	Slug       string    `json:"slug,omitempty"`
	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

// Manager is the single owner of session storage. It guards the
// invariant that the access and refresh tokens are either both present
// or both absent, so a stale access token is never attached after the
// refresh token is gone.
type Manager struct {
	mu    sync.Mutex
	store Store
	log   zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger. The default discards output.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}

	m := &Manager{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// AccessToken returns the stored access token, or "" when logged out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when logged out.
func (m *Manager) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(KeyRefreshToken)
}

// LoggedIn reports whether a token pair is stored.
func (m *Manager) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(KeyAccessToken) != "" && m.get(KeyRefreshToken) != ""
}

// SetTokens stores a fresh token pair, as issued by login or
// registration. Both tokens are required.
func (m *Manager) SetTokens(access, refresh string) error {
	if access == "" {
		return errors.New("[Manager.SetTokens] access token is required")
	}
	if refresh == "" {
		return errors.New("[Manager.SetTokens] refresh token is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(KeyAccessToken, access); err != nil {
		return errors.Wrap(err, "[Manager.SetTokens] store access token")
	}
	if err := m.store.Set(KeyRefreshToken, refresh); err != nil {
		return errors.Wrap(err, "[Manager.SetTokens] store refresh token")
	}
	m.log.Debug().Msg("session tokens stored")
	return nil
}

// RotateAccessToken replaces the access token after a successful
// refresh. It refuses to store one when no refresh token exists: that
// would leave a stale credential behind on a logged-out session.
func (m *Manager) RotateAccessToken(access string) error {
	if access == "" {
		return errors.New("[Manager.RotateAccessToken] access token is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.get(KeyRefreshToken) == "" {
		return errors.Wrap(ErrNoSession, "[Manager.RotateAccessToken]")
	}
	if err := m.store.Set(KeyAccessToken, access); err != nil {
		return errors.Wrap(err, "[Manager.RotateAccessToken] store access token")
	}
	return nil
}

// User returns the cached profile snapshot, if one is stored.
func (m *Manager) User() (*User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw := m.get(KeyUser)
	if raw == "" {
		return nil, false
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.log.Err(err).Msg("cached user is unreadable, ignoring")
		return nil, false
	}
	return &user, true
}

// SetUser caches a profile snapshot.
func (m *Manager) SetUser(user *User) error {
	if user == nil {
		return errors.New("[Manager.SetUser] user is required")
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Manager.SetUser] marshal user")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Wrap(m.store.Set(KeyUser, string(raw)), "[Manager.SetUser] store user")
}

// Clear removes the token pair and the cached user. It is called on
// logout and on unrecoverable refresh failure.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := m.store.Delete(key); err != nil {
			return errors.Wrapf(err, "[Manager.Clear] delete %s", key)
		}
	}
	m.log.Debug().Msg("session cleared")
	return nil
}

// get reads a key, treating "not found" as absence. Callers must hold mu.
func (m *Manager) get(key string) string {
	value, err := m.store.Get(key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			m.log.Err(err).Str("key", key).Msg("session store read failed")
		}
		return ""
	}
	return value
}
