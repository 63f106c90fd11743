package service

import (
	"context"
	"errors"
	"strings"

	"github.com/blockchat/blockchat/internal/auth"
	"github.com/blockchat/blockchat/internal/flow"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/model"
	"github.com/blockchat/blockchat/internal/repository"
)

// Login stage titles and texts.
const (
	loginRequestTitle  = "HTTP Request"
	loginRequestText   = "POST /login request sent"
	loginEndpointTitle = "API Endpoint"
	loginEndpointText  = "Server receives request"
	loginValidateTitle = "Server Logic"
	loginValidateText  = "Validating input data"
	loginLookupTitle   = "Database Query"
	loginLookupText    = "Searching user in database"
	loginCompareTitle  = "Authentication"
	loginCompareText   = "Comparing password hashes"
	loginSessionTitle  = "Session/Token"
	loginSessionText   = "Creating user session"
	loginResponseTitle = "Response"
	loginResponseText  = "200 OK - Login successful"
)

// Login client messages. Unknown email and wrong password share one message.
const (
	MsgLoginMissingFields = "Email and password are required"
	MsgInvalidCredentials = "Invalid email or password"
	MsgLoginSuccess       = "Login successful"
)

// LoginInput defines input for a login attempt.
type LoginInput struct {
	Email    string
	Password string
}

// normalize trims both fields and lowercases the email.
func (in LoginInput) normalize() LoginInput {
	return LoginInput{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: strings.TrimSpace(in.Password),
	}
}

// LoginResult is a successful login.
type LoginResult struct {
	User      model.PublicUser
	Token     string
	SessionID string
	Message   string
	Trace     []flow.StageRecord
}

// Login authenticates a user and opens a session.
//
// Failures are returned as *FlowError carrying the full trace.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	in := input.normalize()
	r := s.begin(metrics.FlowLogin)

	// 1-2: request receipt
	r.emit(flow.Active(1, loginRequestTitle, loginRequestText))
	r.emit(flow.Active(2, loginEndpointTitle, loginEndpointText).
		WithData(flow.Echo{Email: in.Email, Password: flow.MaskedPassword}))

	// 3: validation
	if in.Email == "" || in.Password == "" {
		return nil, r.stop(KindValidation,
			flow.Failure(3, loginValidateTitle, loginValidateText, "✗ Missing fields"),
			MsgLoginMissingFields, nil)
	}
	r.emit(flow.Success(3, loginValidateTitle, loginValidateText, "✓ Input valid"))

	// 4: lookup
	lookup := flow.Active(4, loginLookupTitle, loginLookupText)
	user, err := s.store.FindUserByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, r.stop(KindNotFound,
			flow.Failure(4, loginLookupTitle, loginLookupText, "✗ User not found"),
			MsgInvalidCredentials, err)
	}
	if err != nil {
		return nil, r.internal(lookup, err)
	}
	r.emit(flow.Success(4, loginLookupTitle, loginLookupText, "✓ User found"))

	// 5: password check
	if !auth.VerifyPassword(in.Password, user.PasswordHash) {
		return nil, r.stop(KindAuth,
			flow.Failure(5, loginCompareTitle, loginCompareText, "✗ Wrong password"),
			MsgInvalidCredentials, nil)
	}
	r.emit(flow.Success(5, loginCompareTitle, loginCompareText, "✓ Password matches"))

	// 6: session and token
	session := flow.Active(6, loginSessionTitle, loginSessionText)
	sessionID, err := s.issuer.SessionID()
	if err != nil {
		return nil, r.internal(session, err)
	}
	token, err := s.issuer.Token(user, sessionID)
	if err != nil {
		return nil, r.internal(session, err)
	}
	if err := s.store.InsertSession(ctx, sessionID, user.ID); err != nil {
		return nil, r.internal(session, err)
	}
	r.emit(flow.Success(6, loginSessionTitle, loginSessionText, "✓ JWT created"))

	// 7: response
	r.emit(flow.Success(7, loginResponseTitle, loginResponseText, ""))
	if err := r.done(); err != nil {
		return nil, err
	}

	return &LoginResult{
		User:      user.Public(),
		Token:     token,
		SessionID: sessionID,
		Message:   MsgLoginSuccess,
		Trace:     r.trace.Records(),
	}, nil
}
