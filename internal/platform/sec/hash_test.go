// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duccodon/finai/internal/platform/sec"
)

/*
TestHashPassword verifies the bcrypt round trip and that wrong passwords
are rejected.
*/
func TestHashPassword(t *testing.T) {
	hash, err := sec.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	// The hash must never equal the plaintext.
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, sec.CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, sec.CheckPasswordHash("wrong password", hash))
	assert.False(t, sec.CheckPasswordHash("", hash))
}

/*
TestGenerateOpaqueSecret checks that secrets are unique per call and
URL-safe (they travel inside a cookie value).
*/
func TestGenerateOpaqueSecret(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		secret, err := sec.GenerateOpaqueSecret()
		require.NoError(t, err)
		require.NotEmpty(t, secret)

		assert.False(t, seen[secret], "secrets must be unique")
		seen[secret] = true

		// base64 RawURL alphabet only
		assert.NotContains(t, secret, "+")
		assert.NotContains(t, secret, "/")
		assert.NotContains(t, secret, "=")
	}
}

/*
TestHashOpaqueSecret checks that the digest is deterministic, hex-encoded,
and never the plaintext.
*/
func TestHashOpaqueSecret(t *testing.T) {
	secret, err := sec.GenerateOpaqueSecret()
	require.NoError(t, err)

	first := sec.HashOpaqueSecret(secret)
	second := sec.HashOpaqueSecret(secret)

	assert.Equal(t, first, second, "digest must be deterministic")
	assert.Len(t, first, 64, "sha-256 hex digest")
	assert.NotEqual(t, secret, first)

	other, err := sec.GenerateOpaqueSecret()
	require.NoError(t, err)
	assert.NotEqual(t, first, sec.HashOpaqueSecret(other))
}
