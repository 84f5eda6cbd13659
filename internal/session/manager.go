package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/plants-doctor/internal/models"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("session not found")

// Session is an authenticated login. Token is the opaque bearer value.
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Pending is a login waiting for its verification code.
type Pending struct {
	ID        string      `json:"id"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Manager stores sessions and pending logins as JSON in a Store.
type Manager struct {
	store      Store
	sessionTTL time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

func NewManager(store Store, sessionTTL, pendingTTL time.Duration) *Manager {
	return &Manager{store: store, sessionTTL: sessionTTL, pendingTTL: pendingTTL, now: time.Now}
}

func sessionKey(token string) string { return "session:" + token }
func pendingKey(id string) string    { return "pending:" + id }

// CreateSession issues a new token for user.
func (m *Manager) CreateSession(ctx context.Context, user models.User) (Session, error) {
	s := Session{Token: uuid.NewString(), User: user, ExpiresAt: m.now().Add(m.sessionTTL)}
	if err := m.put(ctx, sessionKey(s.Token), s, m.sessionTTL); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

// Session looks up token. Unknown or expired tokens return ErrNotFound.
func (m *Manager) Session(ctx context.Context, token string) (Session, error) {
	var s Session
	if err := m.get(ctx, sessionKey(token), &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (m *Manager) DeleteSession(ctx context.Context, token string) error {
	return m.store.Delete(ctx, sessionKey(token))
}

// CreatePending records user as awaiting verification.
func (m *Manager) CreatePending(ctx context.Context, user models.User) (Pending, error) {
	p := Pending{ID: uuid.NewString(), User: user, ExpiresAt: m.now().Add(m.pendingTTL)}
	if err := m.put(ctx, pendingKey(p.ID), p, m.pendingTTL); err != nil {
		return Pending{}, fmt.Errorf("store pending login: %w", err)
	}
	return p, nil
}

func (m *Manager) Pending(ctx context.Context, id string) (Pending, error) {
	var p Pending
	if err := m.get(ctx, pendingKey(id), &p); err != nil {
		return Pending{}, err
	}
	return p, nil
}

func (m *Manager) DeletePending(ctx context.Context, id string) error {
	return m.store.Delete(ctx, pendingKey(id))
}

func (m *Manager) put(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, raw, ttl)
}

func (m *Manager) get(ctx context.Context, key string, v interface{}) error {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
