package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blockchat/blockchat/internal/model"
)

// ErrInvalidToken is returned when a signed token fails verification.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are embedded in signed tokens.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// SignedIssuer issues "jwt_"-prefixed HS256 tokens. Tokens carry no expiry,
// matching sessions which are never expired.
type SignedIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSignedIssuer returns a TokenIssuer signing with secret.
func NewSignedIssuer(secret string) (*SignedIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	return &SignedIssuer{
		secret: []byte(secret),
		issuer: "blockchat",
		now:    time.Now,
	}, nil
}

// Token signs a claim set for user and sessionID.
func (s *SignedIssuer) Token(user *model.User, sessionID string) (string, error) {
	claims := SessionClaims{
		SessionID: sessionID,
		Name:      user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return TokenPrefix + signed, nil
}

// SessionID returns a random session identifier.
func (s *SignedIssuer) SessionID() (string, error) {
	return RandomSessionID()
}

// Parse verifies a token produced by Token and returns its claims.
func (s *SignedIssuer) Parse(token string) (*SessionClaims, error) {
	raw, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
