package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMemoryStore_InsertAndFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	id, err := s.InsertUser(ctx, "Bob", "bob@x.com", "hash")
	if err != nil {
		t.Fatalf("InsertUser failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected first id 1, got %d", id)
	}

	u, err := s.FindUserByEmail(ctx, "BOB@X.COM")
	if err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if u.ID != id || u.Name != "Bob" || u.PasswordHash != "hash" {
		t.Errorf("unexpected user: %+v", u)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryStore_FindMissing(t *testing.T) {
	t.Parallel()

	_, err := NewMemory().FindUserByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryStore_DuplicateEmailIgnoresCase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	if _, err := s.InsertUser(ctx, "A", "A@B.com", "h"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := s.InsertUser(ctx, "A2", "a@b.com", "h"); !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestMemoryStore_ConcurrentInsertSameEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.InsertUser(ctx, fmt.Sprintf("user%d", i), "race@x.com", "h"); err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := ok.Load(); got != 1 {
		t.Errorf("expected exactly one successful insert, got %d", got)
	}
}

func TestMemoryStore_InsertSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()
	id, _ := s.InsertUser(ctx, "A", "a@b.com", "h")

	if err := s.InsertSession(ctx, "session_1", id); err != nil {
		t.Fatalf("InsertSession failed: %v", err)
	}
	if err := s.InsertSession(ctx, "session_1", id); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}
	if err := s.InsertSession(ctx, "session_2", id+100); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
	if got := s.SessionCount(); got != 1 {
		t.Errorf("expected 1 session, got %d", got)
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()
	id, _ := s.InsertUser(ctx, "A", "a@b.com", "h")
	_ = s.InsertSession(ctx, "session_1", id)

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if _, err := s.FindUserByEmail(ctx, "a@b.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected user to be gone, got %v", err)
	}
	if s.SessionCount() != 0 {
		t.Error("expected sessions to be cleared")
	}
	newID, _ := s.InsertUser(ctx, "B", "b@b.com", "h")
	if newID != 1 {
		t.Errorf("expected ids to restart at 1, got %d", newID)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()
	_, _ = s.InsertUser(ctx, "A", "a@b.com", "h")

	u, _ := s.FindUserByEmail(ctx, "a@b.com")
	u.Name = "mutated"

	again, _ := s.FindUserByEmail(ctx, "a@b.com")
	if again.Name != "A" {
		t.Errorf("stored user was mutated through returned pointer: %q", again.Name)
	}
}
