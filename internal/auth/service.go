// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duccodon/finai/internal/mail"
	"github.com/duccodon/finai/internal/platform/apperr"
	"github.com/duccodon/finai/internal/platform/dberr"
	"github.com/duccodon/finai/internal/platform/sec"
	"github.com/duccodon/finai/pkg/uuid"
)

// # Orchestrator

// TokenSigner is the access-token capability consumed by the orchestrator.
// Satisfied by [sec.TokenService].
type TokenSigner interface {
	Sign(userID, email string) (string, error)
}

// Config carries the protocol knobs the orchestrator needs.
type Config struct {
	// RefreshTTL is the refresh session lifetime (default 30 days).
	RefreshTTL time.Duration
	// ResetTTL is the password-reset session lifetime (default 15 minutes).
	ResetTTL time.Duration
	// ExposeResetSessionID leaks the reset session id in the
	// forgot-password response so clients without email delivery can
	// complete the flow. Development only.
	ExposeResetSessionID bool
}

// Service orchestrates the full credential and session lifecycle.
//
// It owns the protocol rules (rotation, reuse handling, single-use reset)
// and delegates persistence and delivery to its injected capabilities.
type Service struct {
	users    UserRepository
	sessions SessionStore
	resets   ResetSessionStore
	signer   TokenSigner
	mailer   mail.Sender
	config   Config
	logger   *slog.Logger
}

// NewService wires the orchestrator.
func NewService(
	users UserRepository,
	sessions SessionStore,
	resets ResetSessionStore,
	signer TokenSigner,
	mailer mail.Sender,
	config Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		resets:   resets,
		signer:   signer,
		mailer:   mailer,
		config:   config,
		logger:   logger,
	}
}

// # Inputs and Outputs

// SignupInput carries the fields of a registration request. Profile fields
// are optional; empty strings leave the columns at their defaults.
type SignupInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
	Phone     string
	Location  string
	About     string
}

// GrantedSession is the result of a successful signin or refresh: a signed
// access token plus a brand-new refresh credential pair.
//
// RefreshSecret is the only moment the plaintext secret exists outside the
// client; it is handed to the cookie writer and never stored or logged.
type GrantedSession struct {
	User             *User
	AccessToken      string
	SessionID        string
	RefreshSecret    string
	RefreshExpiresAt time.Time
}

// # Operations

/*
Signup registers a new user.

Parameters:
  - context: context.Context
  - input: SignupInput (already boundary-validated)

Returns:
  - *User: The created user
  - error: ErrEmailTaken on duplicate email, or internal failures
*/
func (service *Service) Signup(context context.Context, input SignupInput) (*User, error) {

	// 1. Hash the password before anything touches storage.
	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Location:     input.Location,
		About:        input.About,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 2. Insert; the unique index on email is the real duplicate arbiter,
	// so no read-before-write.
	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "user_signed_up",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

/*
Signin verifies credentials and grants a fresh session.

Parameters:
  - context: context.Context
  - email: string
  - password: string (plaintext, compared against the bcrypt hash)

Returns:
  - *GrantedSession: Access token plus new refresh credential pair
  - error: ErrInvalidCredentials for unknown email OR wrong password
    (indistinguishable), or internal failures
*/
func (service *Service) Signin(context context.Context, email, password string) (*GrantedSession, error) {

	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	granted, err := service.grantSession(context, user)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "user_signed_in",
		slog.String("user_id", user.ID),
		slog.String("session_id", granted.SessionID),
	)

	return granted, nil
}

/*
Refresh consumes one (sessionID, secret) pair and grants its successor.

Protocol:
 1. Resolve the session; absent or expired means ErrSessionNotFound.
 2. Compare the hash of the presented secret with the stored hash. A
    mismatch on a LIVE session is credential reuse: the session is
    revoked before the same ErrSessionNotFound is reported, so a thief
    replaying a stolen pair kills the whole chain.
 3. Atomically rotate: exactly one of any concurrent refreshes of the
    same pair wins; losers observe ErrSessionNotFound.

Returns:
  - *GrantedSession: New access token plus the successor credential pair
  - error: ErrSessionNotFound on any protocol failure, or internal failures
*/
func (service *Service) Refresh(context context.Context, sessionID, secret string) (*GrantedSession, error) {

	record, err := service.sessions.Get(context, sessionID)
	if err != nil {
		return nil, err
	}

	if sec.HashOpaqueSecret(secret) != record.SecretHash {
		// Reuse detected. Revoke first, then report the same failure kind
		// as a plain miss so the caller learns nothing extra.
		service.logger.WarnContext(context, "refresh_secret_reuse_detected",
			slog.String("session_id", sessionID),
			slog.String("owner_id", record.OwnerID),
		)
		if err := service.sessions.Revoke(context, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	newSecret, err := sec.GenerateOpaqueSecret()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: generate refresh secret: %w", err))
	}

	newSessionID, err := service.sessions.Rotate(context, sessionID, sec.HashOpaqueSecret(newSecret), service.config.RefreshTTL)
	if err != nil {
		// Lost a concurrent rotation race after the Get above.
		return nil, err
	}

	user, err := service.users.FindByID(context, record.OwnerID)
	if err != nil {
		// An orphaned session (owner row deleted) is a credential failure,
		// not a lookup miss.
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	accessToken, err := service.signer.Sign(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: sign access token: %w", err))
	}

	service.logger.DebugContext(context, "refresh_session_rotated",
		slog.String("user_id", user.ID),
		slog.String("session_id", newSessionID),
	)

	return &GrantedSession{
		User:             user,
		AccessToken:      accessToken,
		SessionID:        newSessionID,
		RefreshSecret:    newSecret,
		RefreshExpiresAt: time.Now().UTC().Add(service.config.RefreshTTL),
	}, nil
}

/*
Logout terminates one refresh session.

Same resolution and secret check as Refresh, then a plain revoke. Logging
out an already-dead session returns ErrSessionNotFound; the HTTP boundary
deliberately swallows it so logout stays idempotent for clients.

Returns:
  - error: ErrSessionNotFound when the pair does not resolve, or internal failures
*/
func (service *Service) Logout(context context.Context, sessionID, secret string) error {

	record, err := service.sessions.Get(context, sessionID)
	if err != nil {
		return err
	}

	if sec.HashOpaqueSecret(secret) != record.SecretHash {
		service.logger.WarnContext(context, "logout_secret_reuse_detected",
			slog.String("session_id", sessionID),
			slog.String("owner_id", record.OwnerID),
		)
		if err := service.sessions.Revoke(context, sessionID); err != nil {
			return err
		}
		return ErrSessionNotFound
	}

	if err := service.sessions.Revoke(context, sessionID); err != nil {
		return err
	}

	service.logger.InfoContext(context, "user_signed_out",
		slog.String("user_id", record.OwnerID),
		slog.String("session_id", sessionID),
	)

	return nil
}

/*
ForgotPassword opens a short-lived reset session and emails its id.

Returns:
  - string: The reset session id (surfaced to the client only when
    Config.ExposeResetSessionID is set; see the HTTP boundary)
  - error: ErrUserNotFound for unregistered emails, or delivery/internal failures
*/
func (service *Service) ForgotPassword(context context.Context, email string) (string, error) {

	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	secret, err := sec.GenerateOpaqueSecret()
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("auth: generate reset secret: %w", err))
	}

	resetSessionID, err := service.resets.Create(context, user.ID, sec.HashOpaqueSecret(secret), service.config.ResetTTL)
	if err != nil {
		return "", err
	}

	if err := service.mailer.SendResetEmail(context, user.Email, resetSessionID); err != nil {
		return "", apperr.Internal(fmt.Errorf("auth: send reset email: %w", err))
	}

	service.logger.InfoContext(context, "password_reset_requested",
		slog.String("user_id", user.ID),
	)

	return resetSessionID, nil
}

/*
ResetPassword consumes a reset session and installs a new password.

The reset session is single-use: it is deleted before the response is
produced, and every live refresh session of the owner is revoked so
credentials stolen before the reset die with the old password.

Returns:
  - error: ErrResetSessionInvalid for unknown/expired sessions, or internal failures
*/
func (service *Service) ResetPassword(context context.Context, resetSessionID, newPassword string) error {

	record, err := service.resets.Get(context, resetSessionID)
	if err != nil {
		return err
	}

	passwordHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth: hash password: %w", err))
	}

	if err := service.users.UpdatePassword(context, record.OwnerID, passwordHash); err != nil {
		return err
	}

	if err := service.resets.Delete(context, resetSessionID); err != nil {
		return err
	}

	// Refresh sessions issued under the old password are dead weight at
	// best and stolen at worst.
	if err := service.sessions.RevokeAll(context, record.OwnerID); err != nil {
		service.logger.ErrorContext(context, "revoke_all_after_reset_failed",
			slog.String("user_id", record.OwnerID),
			slog.Any("error", err),
		)
	}

	service.logger.InfoContext(context, "password_reset_completed",
		slog.String("user_id", record.OwnerID),
	)

	return nil
}

/*
UpdateProfile applies a partial profile update for the authenticated user.

Returns:
  - *User: The user after the update
  - error: NotFound when the user row is gone, or internal failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, update UserUpdate) (*User, error) {

	if err := service.users.UpdateFields(context, userID, update); err != nil {
		return nil, err
	}

	return service.users.FindByID(context, userID)
}

// GetUser loads the authenticated user's profile.
func (service *Service) GetUser(context context.Context, userID string) (*User, error) {
	return service.users.FindByID(context, userID)
}

// ExposeResetSessionID reports whether forgot-password responses may carry
// the reset session id.
func (service *Service) ExposeResetSessionID() bool {
	return service.config.ExposeResetSessionID
}

// RefreshTTL exposes the refresh session lifetime for the cookie writer.
func (service *Service) RefreshTTL() time.Duration {
	return service.config.RefreshTTL
}

// grantSession mints a refresh credential pair and signs an access token
// for user.
func (service *Service) grantSession(context context.Context, user *User) (*GrantedSession, error) {

	accessToken, err := service.signer.Sign(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: sign access token: %w", err))
	}

	secret, err := sec.GenerateOpaqueSecret()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth: generate refresh secret: %w", err))
	}

	sessionID, err := service.sessions.Create(context, user.ID, sec.HashOpaqueSecret(secret), service.config.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &GrantedSession{
		User:             user,
		AccessToken:      accessToken,
		SessionID:        sessionID,
		RefreshSecret:    secret,
		RefreshExpiresAt: time.Now().UTC().Add(service.config.RefreshTTL),
	}, nil
}
