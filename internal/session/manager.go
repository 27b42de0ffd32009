// Package session issues and resolves opaque session identifiers bound
// to authenticated usernames.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/bankguard/internal/domain"
	"github.com/punchamoorthee/bankguard/internal/store"
)

// ErrInvalidCredentials indicates an unknown username or a password
// mismatch. Callers must not distinguish the two cases.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Manager keeps session records in process memory. Sessions have no
// expiry in this model; Destroy is the only teardown.
type Manager struct {
	store domain.Store

	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewManager creates a session manager backed by the given account
// store for credential checks.
func NewManager(store domain.Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*domain.Session),
	}
}

// Login verifies the credentials and allocates a fresh session. Each
// call issues a new identifier; prior sessions for the same user stay
// valid until explicitly destroyed.
func (m *Manager) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	account, err := m.store.Account(ctx, username)
	if err != nil {
		// Only an unknown username reads as bad credentials. A store
		// outage must surface as what it is, not as a wrong password.
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	s := &domain.Session{
		ID:        id,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return s, nil
}

// Resolve looks up a session by identifier. A false return means the
// request is not authenticated.
func (m *Manager) Resolve(id string) (*domain.Session, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Destroy removes the server-side session record. It is idempotent and
// safe to call while a request for the same session is in flight; a
// transfer already past Resolve completes normally.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
