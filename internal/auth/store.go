// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package auth

import (
	"context"
	"time"
)

// # Persistence Contracts
//
// The orchestrator depends on these interfaces only; the Redis and
// PostgreSQL implementations live in store_redis.go and store_postgres.go.

// UserRepository is the durable credential store.
type UserRepository interface {

	/*
		Create persists a new user row.

		Parameters:
		  - context: context.Context
		  - user: *User (ID and timestamps already populated)

		Returns:
		  - error: Conflict on duplicate email, or database failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByEmail loads a user by email address.

		Returns:
		  - *User: The user if found
		  - error: NotFound when no row matches, or database failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByID loads a user by primary key.

		Returns:
		  - *User: The user if found
		  - error: NotFound when no row matches, or database failures
	*/
	FindByID(context context.Context, userID string) (*User, error)

	/*
		UpdatePassword replaces the stored password hash for a user.

		Returns:
		  - error: NotFound when no row matches, or database failures
	*/
	UpdatePassword(context context.Context, userID, passwordHash string) error

	/*
		UpdateFields applies a partial profile update. Nil pointers in
		update leave the corresponding column untouched.

		Returns:
		  - error: NotFound when no row matches, or database failures
	*/
	UpdateFields(context context.Context, userID string, update UserUpdate) error
}

// SessionStore manages the rotating refresh sessions.
//
// All expiry is native to the store: an expired session is simply absent.
type SessionStore interface {

	/*
		Create mints a fresh session for ownerID holding secretHash and
		returns its unguessable session id.

		Parameters:
		  - context: context.Context
		  - ownerID: string (user primary key)
		  - secretHash: string (hash of the client-held secret, never the secret)
		  - ttl: time.Duration (session lifetime)

		Returns:
		  - string: The new session id
		  - error: Store failures
	*/
	Create(context context.Context, ownerID, secretHash string, ttl time.Duration) (string, error)

	/*
		Get resolves a session id to its record without consuming it.

		Returns:
		  - *SessionRecord: The record if present and unexpired
		  - error: ErrSessionNotFound when absent or expired, or store failures
	*/
	Get(context context.Context, sessionID string) (*SessionRecord, error)

	/*
		Rotate atomically consumes the old session and mints its successor
		with the same owner and a new secret hash. Exactly one of any
		concurrent rotations of the same id wins; losers observe
		ErrSessionNotFound.

		Returns:
		  - string: The successor session id
		  - error: ErrSessionNotFound when the old session is already gone,
		    or store failures
	*/
	Rotate(context context.Context, oldSessionID, newSecretHash string, ttl time.Duration) (string, error)

	/*
		Revoke deletes a session. Revoking an absent session is a no-op,
		making logout idempotent.

		Returns:
		  - error: Store failures only
	*/
	Revoke(context context.Context, sessionID string) error

	/*
		RevokeAll deletes every live session belonging to ownerID. Used
		after a password reset so stolen refresh credentials die with the
		old password.

		Returns:
		  - error: Store failures
	*/
	RevokeAll(context context.Context, ownerID string) error
}

// ResetSessionStore manages the short-lived single-use password-reset
// sessions. Same expiry model as [SessionStore]: absent means invalid.
type ResetSessionStore interface {

	/*
		Create mints a reset session for ownerID and returns its id.

		Returns:
		  - string: The new reset session id
		  - error: Store failures
	*/
	Create(context context.Context, ownerID, secretHash string, ttl time.Duration) (string, error)

	/*
		Get resolves a reset session id without consuming it.

		Returns:
		  - *SessionRecord: The record if present and unexpired
		  - error: ErrResetSessionInvalid when absent or expired, or store failures
	*/
	Get(context context.Context, resetSessionID string) (*SessionRecord, error)

	/*
		Delete consumes a reset session. Deleting an absent session is a no-op.

		Returns:
		  - error: Store failures only
	*/
	Delete(context context.Context, resetSessionID string) error
}
