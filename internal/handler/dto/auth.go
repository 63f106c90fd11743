// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/blockchat/blockchat/internal/flow"
	"github.com/blockchat/blockchat/internal/model"
)

// LoginRequest represents the request body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the request body for POST /api/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

// FlowResponse is the body of every login and register response.
// FlowSteps always holds seven entries.
type FlowResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	User      *model.PublicUser  `json:"user,omitempty"`
	Token     string             `json:"token,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
	FlowSteps []flow.StageRecord `json:"flowSteps"`
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
