// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing, opaque
// secrets) from the domain logic. It acts as an Infrastructure service injected
// into the Application layer via the [auth.TokenSigner] interface.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure kinds.
//
// Callers can special-case "merely expired" (e.g. trigger a silent refresh)
// versus genuinely invalid tokens (force re-login), so the three kinds are
// surfaced as distinct sentinel errors instead of one opaque failure.
var (
	// ErrTokenExpired means the token was well-formed and correctly signed
	// but its 'exp' claim is in the past.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenNotActiveYet means the token's 'nbf' or 'iat' claim is in the future.
	ErrTokenNotActiveYet = errors.New("sec: token not active yet")

	// ErrTokenMalformed covers every other failure: bad structure, wrong
	// signature, unexpected algorithm.
	ErrTokenMalformed = errors.New("sec: token malformed")
)

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding the email next to the registered 'sub' claim, downstream
// services can reconstruct the active user context WITHOUT querying the
// user store on every single API request.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Email mirrors the original payload shape: { sub, email }.
	Email string `json:"email"`
}

// UserID returns the subject claim, which carries the account id.
func (c *AuthClaims) UserID() string { return c.Subject }

// TokenService handles generation and verification of JWT access tokens
// using HS256 with a shared server secret.
//
// It is stateless: tokens are never persisted server-side and are verified
// by signature + expiry only.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a new TokenService.
//
// # Parameters
//   - secret: The HMAC signing secret (from configuration, never hardcoded).
//   - issuer: The 'iss' claim stamped into every token.
//   - ttl: The fixed access-token lifetime (short, minutes).
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

/*
Sign creates a new signed JWT access token for a user.

Description: Stamps { sub, email, iss, iat, exp } and signs with HS256.
No side effects; the token is never stored.

Parameters:
  - userID: The ID of the account ('sub' claim).
  - email: The account email.

Returns:
  - A signed JWT string, or an error if signing fails.
*/
func (service *TokenService) Sign(userID, email string) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.ttl)),
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

/*
Verify checks the signature and validity of a JWT string.

Description: Pure verification; never mutates state. Failures are
discriminated into [ErrTokenExpired], [ErrTokenNotActiveYet], and
[ErrTokenMalformed] so callers can respond with context.

Parameters:
  - tokenString: The raw JWT from the Authorization header.

Returns:
  - *AuthClaims: The verified claims.
  - error: One of the three sentinel kinds (wrapped).
*/
func (service *TokenService) Verify(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, fmt.Errorf("%w: %w", ErrTokenNotActiveYet, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		}
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrTokenMalformed)
	}

	return claims, nil
}
