package model

import "time"

// Session records a successful login. Sessions are never updated or expired.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
