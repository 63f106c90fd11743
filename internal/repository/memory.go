package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/blockchat/blockchat/internal/model"
)

// MemoryStore is an in-process Store. All operations hold a single lock, so
// the uniqueness check and insert of InsertUser are atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[string]*model.User // keyed by lowercased email
	byID     map[int64]*model.User
	sessions map[string]*model.Session
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.nextID = 0
	s.users = make(map[string]*model.User)
	s.byID = make(map[int64]*model.User)
	s.sessions = make(map[string]*model.Session)
}

// FindUserByEmail returns the user with the given email, ignoring case.
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// InsertUser creates a user and returns its id.
func (s *MemoryStore) InsertUser(ctx context.Context, name, email, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.users[key]; exists {
		return 0, ErrEmailExists
	}

	s.nextID++
	u := &model.User{
		ID:           s.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.users[key] = u
	s.byID[u.ID] = u

	return u.ID, nil
}

// InsertSession records a session for an existing user.
func (s *MemoryStore) InsertSession(ctx context.Context, sessionID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[userID]; !ok {
		return ErrUnknownUser
	}
	if _, exists := s.sessions[sessionID]; exists {
		return ErrSessionExists
	}

	s.sessions[sessionID] = &model.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	return nil
}

// SessionCount returns the number of stored sessions.
func (s *MemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reset drops all users and sessions.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}
