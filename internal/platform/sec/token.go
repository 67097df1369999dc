// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// OpaqueSecretBytes is the entropy of refresh and reset secrets (256 bits).
const OpaqueSecretBytes = 32

/*
GenerateOpaqueSecret creates a cryptographically random, URL-safe secret.

Description: Used for both refresh and reset credentials. Unlike a signed
token, the value carries no embedded structure; the server only ever stores
its hash.

Returns:
  - string: 43-character base64 raw-URL encoding of 32 random bytes.
  - error: Entropy source failures.
*/
func GenerateOpaqueSecret() (string, error) {
	buffer := make([]byte, OpaqueSecretBytes)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate opaque secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashOpaqueSecret returns the hex-encoded SHA-256 digest of an opaque secret.
//
// # Why not bcrypt?
//
// The input already carries 256 bits of entropy and is compared once per use,
// so the stored hash is not brute-forceable within the session TTL. A fast,
// deterministic hash also allows direct equality comparison on lookup.
func HashOpaqueSecret(secret string) string {
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:])
}
