// Package repository provides the credential store: users and sessions.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blockchat/blockchat/internal/model"
)

// pgxPool is the subset of pgxpool.Pool used by Repository.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Repository is a PostgreSQL-backed Store.
type Repository struct {
	pool        pgxPool
	databaseURL string
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool, databaseURL: databaseURL}, nil
}

// NewWithPool wraps an existing pool. databaseURL is only needed for Reset.
func NewWithPool(pool pgxPool, databaseURL string) *Repository {
	return &Repository{pool: pool, databaseURL: databaseURL}
}

const (
	findUserByEmailSQL = `SELECT id, name, email, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`
	insertUserSQL      = `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id`
	insertSessionSQL   = `INSERT INTO sessions (id, user_id) VALUES ($1, $2)`
)

// FindUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, findUserByEmailSQL, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// InsertUser inserts a new user and returns its id.
// Uniqueness is enforced by the users_email_lower_idx index.
func (r *Repository) InsertUser(ctx context.Context, name, email, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, insertUserSQL, name, email, passwordHash).Scan(&id)
	if err != nil {
		if pgCode(err) == pgerrcode.UniqueViolation {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	return id, nil
}

// InsertSession inserts a session row.
func (r *Repository) InsertSession(ctx context.Context, sessionID string, userID int64) error {
	_, err := r.pool.Exec(ctx, insertSessionSQL, sessionID, userID)
	if err != nil {
		switch pgCode(err) {
		case pgerrcode.ForeignKeyViolation:
			return ErrUnknownUser
		case pgerrcode.UniqueViolation:
			return ErrSessionExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Reset drops and recreates the schema from the embedded migrations.
func (r *Repository) Reset(ctx context.Context) error {
	if r.databaseURL == "" {
		return errors.New("reset requires a database URL")
	}
	return resetSchema(r.databaseURL)
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// pgCode returns the SQLSTATE of a PostgreSQL error, or "".
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
