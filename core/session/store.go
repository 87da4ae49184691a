// Package session provides the cookie-session store. Handlers look up the
// caller's session data by the id carried in a signed cookie; the backing
// store is pluggable so tests run against an in-memory map while production
// uses Redis.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Data is what a session remembers about its owner. UserID is 0 until the
// session creates a user.
type Data struct {
	SessionID string `json:"sessionId"`
	UserID    int64  `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Store persists session data keyed by session id. Get returns (nil, nil)
// for an unknown id.
type Store interface {
	Create(ctx context.Context, data *Data) error
	Get(ctx context.Context, sessionID string) (*Data, error)
	Update(ctx context.Context, data *Data) error
	Delete(ctx context.Context, sessionID string) error
}

// NewSessionID generates a fresh session id.
func NewSessionID() string {
	return uuid.New().String()
}

// MemoryStore is a map-backed Store for tests and single-process setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Data
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Data)}
}

func (s *MemoryStore) Create(ctx context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[data.SessionID] = *data
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &data, nil
}

func (s *MemoryStore) Update(ctx context.Context, data *Data) error {
	return s.Create(ctx, data)
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
