// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duccodon/finai/internal/platform/constants"
	"github.com/duccodon/finai/pkg/uuid"
)

// # Redis Session Store
//
// Refresh sessions are volatile by design: Redis TTL is the single expiry
// mechanism, and GETDEL is the atomic consume primitive that makes
// rotation winner-takes-one under concurrency.

// RedisSessionStore implements [SessionStore] on top of Redis.
//
// Key layout:
//
//	auth:refresh_session:<id>   -> JSON SessionRecord, EX = refresh TTL
//	auth:refresh_index:<owner>  -> SET of live session ids for the owner
//
// The reverse index exists only to serve RevokeAll; it carries the same
// TTL as the sessions it points at, refreshed on every Create, so it can
// never outlive its last member by more than one lifetime.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore constructs a [RedisSessionStore].
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func refreshSessionKey(sessionID string) string {
	return constants.RedisPrefixRefreshSession + sessionID
}

func refreshIndexKey(ownerID string) string {
	return constants.RedisPrefixRefreshIndex + ownerID
}

// Create mints a fresh refresh session and registers it in the owner index.
func (store *RedisSessionStore) Create(context context.Context, ownerID, secretHash string, ttl time.Duration) (string, error) {

	// v4: session ids double as bearer lookup keys and must be unguessable.
	sessionID := uuid.NewRandom()

	payload, err := json.Marshal(SessionRecord{OwnerID: ownerID, SecretHash: secretHash})
	if err != nil {
		return "", fmt.Errorf("auth: marshal session record: %w", err)
	}

	// SET + SADD + EXPIRE in one round trip; MULTI/EXEC keeps the index
	// consistent with the session key.
	pipe := store.client.TxPipeline()
	pipe.Set(context, refreshSessionKey(sessionID), payload, ttl)
	pipe.SAdd(context, refreshIndexKey(ownerID), sessionID)
	pipe.Expire(context, refreshIndexKey(ownerID), ttl)

	if _, err := pipe.Exec(context); err != nil {
		return "", fmt.Errorf("auth: create refresh session: %w", err)
	}

	return sessionID, nil
}

// Get resolves a session id without consuming it.
func (store *RedisSessionStore) Get(context context.Context, sessionID string) (*SessionRecord, error) {

	raw, err := store.client.Get(context, refreshSessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		// Absent and expired are indistinguishable on purpose.
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get refresh session: %w", err)
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("auth: decode refresh session: %w", err)
	}

	return &record, nil
}

// Rotate atomically consumes oldSessionID and mints its successor.
func (store *RedisSessionStore) Rotate(context context.Context, oldSessionID, newSecretHash string, ttl time.Duration) (string, error) {

	// GETDEL is the race arbiter: of N concurrent rotations of the same id,
	// exactly one receives the value, the rest see redis.Nil.
	raw, err := store.client.GetDel(context, refreshSessionKey(oldSessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("auth: consume refresh session: %w", err)
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return "", fmt.Errorf("auth: decode refresh session: %w", err)
	}

	// Best-effort index cleanup; a stale member only costs RevokeAll one
	// extra DEL against an absent key.
	if err := store.client.SRem(context, refreshIndexKey(record.OwnerID), oldSessionID).Err(); err != nil {
		return "", fmt.Errorf("auth: unindex refresh session: %w", err)
	}

	return store.Create(context, record.OwnerID, newSecretHash, ttl)
}

// Revoke deletes a session. Absent sessions are a no-op.
func (store *RedisSessionStore) Revoke(context context.Context, sessionID string) error {

	raw, err := store.client.GetDel(context, refreshSessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: revoke refresh session: %w", err)
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return fmt.Errorf("auth: decode refresh session: %w", err)
	}

	if err := store.client.SRem(context, refreshIndexKey(record.OwnerID), sessionID).Err(); err != nil {
		return fmt.Errorf("auth: unindex refresh session: %w", err)
	}

	return nil
}

// RevokeAll deletes every live session belonging to ownerID.
func (store *RedisSessionStore) RevokeAll(context context.Context, ownerID string) error {

	sessionIDs, err := store.client.SMembers(context, refreshIndexKey(ownerID)).Result()
	if err != nil {
		return fmt.Errorf("auth: list refresh sessions: %w", err)
	}

	pipe := store.client.TxPipeline()
	for _, sessionID := range sessionIDs {
		pipe.Del(context, refreshSessionKey(sessionID))
	}
	pipe.Del(context, refreshIndexKey(ownerID))

	if _, err := pipe.Exec(context); err != nil {
		return fmt.Errorf("auth: revoke all refresh sessions: %w", err)
	}

	return nil
}

// # Redis Reset Store

// RedisResetStore implements [ResetSessionStore] on top of Redis.
//
// Key layout:
//
//	auth:reset_session:<id> -> JSON SessionRecord, EX = reset TTL
//
// No owner index: reset sessions are minutes-lived and consumed at most
// once, so there is nothing to bulk-revoke.
type RedisResetStore struct {
	client *redis.Client
}

// NewRedisResetStore constructs a [RedisResetStore].
func NewRedisResetStore(client *redis.Client) *RedisResetStore {
	return &RedisResetStore{client: client}
}

func resetSessionKey(resetSessionID string) string {
	return constants.RedisPrefixResetSession + resetSessionID
}

// Create mints a reset session.
func (store *RedisResetStore) Create(context context.Context, ownerID, secretHash string, ttl time.Duration) (string, error) {

	resetSessionID := uuid.NewRandom()

	payload, err := json.Marshal(SessionRecord{OwnerID: ownerID, SecretHash: secretHash})
	if err != nil {
		return "", fmt.Errorf("auth: marshal reset record: %w", err)
	}

	if err := store.client.Set(context, resetSessionKey(resetSessionID), payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: create reset session: %w", err)
	}

	return resetSessionID, nil
}

// Get resolves a reset session id without consuming it.
func (store *RedisResetStore) Get(context context.Context, resetSessionID string) (*SessionRecord, error) {

	raw, err := store.client.Get(context, resetSessionKey(resetSessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResetSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get reset session: %w", err)
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("auth: decode reset session: %w", err)
	}

	return &record, nil
}

// Delete consumes a reset session. Absent sessions are a no-op.
func (store *RedisResetStore) Delete(context context.Context, resetSessionID string) error {

	if err := store.client.Del(context, resetSessionKey(resetSessionID)).Err(); err != nil {
		return fmt.Errorf("auth: delete reset session: %w", err)
	}

	return nil
}
