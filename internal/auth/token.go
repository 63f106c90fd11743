package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/blockchat/blockchat/internal/model"
)

// Literal tags carried by generated credentials.
const (
	TokenPrefix     = "jwt_"
	SessionIDPrefix = "session_"
)

const (
	tokenBytes     = 32 // 64 hex chars
	sessionIDBytes = 16 // 32 hex chars
)

// TokenIssuer produces the credentials handed out on login.
type TokenIssuer interface {
	// Token returns a bearer token for user bound to sessionID.
	Token(user *model.User, sessionID string) (string, error)
	// SessionID returns a fresh opaque session identifier.
	SessionID() (string, error)
}

// OpaqueIssuer issues random hex tokens.
type OpaqueIssuer struct{}

// NewOpaqueIssuer returns the default TokenIssuer.
func NewOpaqueIssuer() *OpaqueIssuer {
	return &OpaqueIssuer{}
}

// Token returns "jwt_" followed by 32 random bytes in hex.
func (OpaqueIssuer) Token(*model.User, string) (string, error) {
	return RandomToken()
}

// SessionID returns "session_" followed by 16 random bytes in hex.
func (OpaqueIssuer) SessionID() (string, error) {
	return RandomSessionID()
}

// RandomToken returns a random bearer token.
func RandomToken() (string, error) {
	s, err := randomHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return TokenPrefix + s, nil
}

// RandomSessionID returns a random session identifier.
func RandomSessionID() (string, error) {
	s, err := randomHex(sessionIDBytes)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return SessionIDPrefix + s, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
