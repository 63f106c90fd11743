package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/blockchat/blockchat/internal/auth"
	"github.com/blockchat/blockchat/internal/flow"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/model"
	"github.com/blockchat/blockchat/internal/repository"
)

// Register stage titles and texts.
const (
	registerRequestTitle  = "HTTP Request"
	registerRequestText   = "POST /register request sent"
	registerValidateTitle = "Validate Input"
	registerValidateText  = "Checking all fields"
	registerExistsTitle   = "Check User Exists"
	registerExistsText    = "Email already in database?"
	registerHashTitle     = "Hash Password"
	registerHashText      = "Encrypting password"
	registerInsertTitle   = "Insert Database"
	registerInsertText    = "Creating user record"
	registerConfirmTitle  = "Send Confirmation"
	registerConfirmText   = "Email verification link"
	registerResponseTitle = "Response"
	registerResponseText  = "201 Created - Registration successful"
)

// Register client messages.
const (
	MsgFieldsRequired   = "All fields required"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be 6+ characters"
	MsgInvalidEmail     = "Invalid email format"
	MsgEmailRegistered  = "Email already registered"
	MsgRegisterSuccess  = "Account created successfully!"
)

const (
	registerEmailTaken = "✗ Email taken"
	minPasswordLength  = 6
)

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Confirm  string
}

// normalize trims every field and lowercases the email.
func (in RegisterInput) normalize() RegisterInput {
	return RegisterInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: strings.TrimSpace(in.Password),
		Confirm:  strings.TrimSpace(in.Confirm),
	}
}

// validate returns the message of the first failing rule, or "".
// Rules are checked in a fixed order.
func (in RegisterInput) validate() string {
	switch {
	case in.Name == "" || in.Email == "" || in.Password == "" || in.Confirm == "":
		return MsgFieldsRequired
	case in.Password != in.Confirm:
		return MsgPasswordMismatch
	case utf8.RuneCountInString(in.Password) < minPasswordLength:
		return MsgPasswordTooShort
	case !strings.Contains(in.Email, "@") || !strings.Contains(in.Email, "."):
		return MsgInvalidEmail
	}
	return ""
}

// RegisterResult is a successful registration.
type RegisterResult struct {
	User    model.PublicUser
	Message string
	Trace   []flow.StageRecord
}

// Register creates a new account.
//
// Failures are returned as *FlowError carrying the full trace.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	in := input.normalize()
	r := s.begin(metrics.FlowRegister)

	// 1: request receipt
	r.emit(flow.Active(1, registerRequestTitle, registerRequestText))

	// 2: validation
	if msg := in.validate(); msg != "" {
		return nil, r.stop(KindValidation,
			flow.Failure(2, registerValidateTitle, registerValidateText, "✗ "+msg),
			msg, nil)
	}
	r.emit(flow.Success(2, registerValidateTitle, registerValidateText, "✓ All fields valid"))

	// 3: uniqueness
	exists := flow.Active(3, registerExistsTitle, registerExistsText)
	_, err := s.store.FindUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, r.stop(KindConflict,
			flow.Failure(3, registerExistsTitle, registerExistsText, registerEmailTaken),
			MsgEmailRegistered, repository.ErrEmailExists)
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, r.internal(exists, err)
	}
	r.emit(flow.Success(3, registerExistsTitle, registerExistsText, "✓ Email available"))

	// 4: hashing
	hash := auth.HashPassword(in.Password)
	r.emit(flow.Success(4, registerHashTitle, registerHashText, "✓ Password hashed"))

	// 5: insert. A concurrent registration may win between steps 3 and 5.
	insert := flow.Active(5, registerInsertTitle, registerInsertText)
	id, err := s.store.InsertUser(ctx, in.Name, in.Email, hash)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil, r.stop(KindConflict,
			flow.Failure(5, registerInsertTitle, registerInsertText, registerEmailTaken),
			MsgEmailRegistered, err)
	}
	if err != nil {
		return nil, r.internal(insert, err)
	}
	r.emit(flow.Success(5, registerInsertTitle, registerInsertText, "✓ User created"))

	// 6: confirmation is simulated
	r.emit(flow.Success(6, registerConfirmTitle, registerConfirmText, "✓ Email sent"))

	// 7: response
	r.emit(flow.Success(7, registerResponseTitle, registerResponseText, ""))
	if err := r.done(); err != nil {
		return nil, err
	}

	return &RegisterResult{
		User:    model.PublicUser{ID: id, Name: in.Name, Email: in.Email},
		Message: MsgRegisterSuccess,
		Trace:   r.trace.Records(),
	}, nil
}
