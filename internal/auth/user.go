// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

/*
Package auth implements the session and token lifecycle for the Finai platform.

It defines the core domain entities (User, SessionRecord) and the protocol
logic for signup, signin, refresh-with-rotation, logout, and password reset.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no
transport dependencies and encapsulate all business rules related to
credential and session identity.
*/
package auth

import (
	"time"

	"github.com/duccodon/finai/internal/platform/apperr"
)

// # Domain Entities

// User represents a registered member of the Finai platform.
//
// The password hash never leaves the server: it is explicitly omitted from
// every JSON projection.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location,omitempty"`
	About        string    `json:"about,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionRecord is the server-side state backing one opaque credential.
//
// The same shape backs both session kinds:
//
//   - refresh sessions (long-lived, rotated on every use)
//   - reset sessions (short-lived, single-use)
//
// Only the hash of the client-held secret is ever stored; a session is valid
// iff it still exists in the store AND the hash of the presented secret
// equals SecretHash. Expiry is enforced by the store itself, never by
// re-checking timestamps here.
type SessionRecord struct {
	OwnerID    string `json:"owner_id"`
	SecretHash string `json:"secret_hash"`
}

// UserUpdate carries optional profile fields for a partial update.
// Nil pointers leave the column untouched.
type UserUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
	Phone     *string
	Location  *string
	About     *string
}

// # Protocol Failure Kinds
//
// Package-level values so callers (and tests) can discriminate with
// [errors.Is]. The HTTP boundary maps each to its status code through
// the embedded [apperr.AppError].

var (
	// ErrInvalidCredentials covers both unknown email and wrong password on
	// signin. Deliberately indistinguishable to prevent user enumeration.
	ErrInvalidCredentials = apperr.Unauthorized("Invalid email or password")

	// ErrEmailTaken reports a signup against an already-registered email.
	ErrEmailTaken = apperr.Conflict("Email already in use")

	// ErrSessionNotFound reports a refresh/logout against a session id that
	// does not resolve, is expired, or whose secret did not match (the reuse
	// case is folded into this same kind after the store-side revoke).
	ErrSessionNotFound = apperr.Unauthorized("Refresh session not found or expired")

	// ErrResetSessionInvalid reports a reset-password against an unknown or
	// expired reset session id.
	ErrResetSessionInvalid = apperr.BadRequest("Invalid or expired reset password session")

	// ErrUserNotFound reports a forgot-password for an unregistered email.
	// This path leaks address existence; see DESIGN.md before changing it.
	ErrUserNotFound = apperr.BadRequest("User not found")
)

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldNewPassword     = "new_password"
	FieldUsername        = "username"
	FieldPhone           = "phone"
	FieldResetSessionID  = "reset_session_id"
	FieldAccessToken     = "access_token"
	FieldUser            = "user"
	FieldMessage         = "message"
)

// MinPasswordLength is the minimum accepted password size, enforced at the
// boundary before the orchestrator is invoked.
const MinPasswordLength = 8
