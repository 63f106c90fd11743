package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockchat/blockchat/internal/auth"
	"github.com/blockchat/blockchat/internal/model"
)

// Common errors for credential store operations.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is the unique-constraint failure on users.email.
	ErrEmailExists = errors.New("email already exists")
	// ErrUnknownUser is the foreign-key failure on sessions.user_id.
	ErrUnknownUser = errors.New("session references unknown user")
	// ErrSessionExists is the primary-key failure on sessions.id.
	ErrSessionExists = errors.New("session already exists")
)

// Demo account seeded on every start.
const (
	DemoName     = "Demo User"
	DemoEmail    = "user@example.com"
	DemoPassword = "password123"
)

// Store holds users and sessions.
//
// Email comparisons are case-insensitive. InsertUser must enforce email
// uniqueness atomically so that concurrent registrations of the same address
// cannot both succeed.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	InsertUser(ctx context.Context, name, email, passwordHash string) (int64, error)
	InsertSession(ctx context.Context, sessionID string, userID int64) error
	// Reset drops all data and recreates an empty schema.
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// InitStore resets the store and seeds the demo user.
// It is called once during process bootstrap.
func InitStore(ctx context.Context, store Store) (*model.User, error) {
	if err := store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}

	if _, err := store.InsertUser(ctx, DemoName, DemoEmail, auth.HashPassword(DemoPassword)); err != nil {
		return nil, fmt.Errorf("seed demo user: %w", err)
	}

	user, err := store.FindUserByEmail(ctx, DemoEmail)
	if err != nil {
		return nil, fmt.Errorf("read back demo user: %w", err)
	}
	return user, nil
}
