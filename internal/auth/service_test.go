// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duccodon/finai/internal/auth"
	"github.com/duccodon/finai/internal/platform/dberr"
	"github.com/duccodon/finai/internal/platform/sec"
	"github.com/duccodon/finai/pkg/uuid"
)

// # In-Memory Fakes
//
// The protocol invariants (rotation, reuse handling, single-use reset) are
// store-agnostic, so the orchestrator is tested against in-memory stores
// that honor the same contracts as the Redis implementations, including
// native expiry.

type memorySession struct {
	record    auth.SessionRecord
	expiresAt time.Time
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]memorySession)}
}

func (store *memorySessionStore) Create(_ context.Context, ownerID, secretHash string, ttl time.Duration) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	sessionID := uuid.NewRandom()
	store.sessions[sessionID] = memorySession{
		record:    auth.SessionRecord{OwnerID: ownerID, SecretHash: secretHash},
		expiresAt: time.Now().Add(ttl),
	}
	return sessionID, nil
}

func (store *memorySessionStore) Get(_ context.Context, sessionID string) (*auth.SessionRecord, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	session, found := store.sessions[sessionID]
	if !found || time.Now().After(session.expiresAt) {
		return nil, auth.ErrSessionNotFound
	}
	record := session.record
	return &record, nil
}

func (store *memorySessionStore) Rotate(context context.Context, oldSessionID, newSecretHash string, ttl time.Duration) (string, error) {
	store.mu.Lock()
	session, found := store.sessions[oldSessionID]
	if !found || time.Now().After(session.expiresAt) {
		store.mu.Unlock()
		return "", auth.ErrSessionNotFound
	}
	delete(store.sessions, oldSessionID)
	store.mu.Unlock()

	return store.Create(context, session.record.OwnerID, newSecretHash, ttl)
}

func (store *memorySessionStore) Revoke(_ context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.sessions, sessionID)
	return nil
}

func (store *memorySessionStore) RevokeAll(_ context.Context, ownerID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for sessionID, session := range store.sessions {
		if session.record.OwnerID == ownerID {
			delete(store.sessions, sessionID)
		}
	}
	return nil
}

// storedHash exposes the stored secret hash for plaintext-leak assertions.
func (store *memorySessionStore) storedHash(sessionID string) (string, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	session, found := store.sessions[sessionID]
	return session.record.SecretHash, found
}

type memoryResetStore struct {
	mu     sync.Mutex
	resets map[string]memorySession
}

func newMemoryResetStore() *memoryResetStore {
	return &memoryResetStore{resets: make(map[string]memorySession)}
}

func (store *memoryResetStore) Create(_ context.Context, ownerID, secretHash string, ttl time.Duration) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	resetSessionID := uuid.NewRandom()
	store.resets[resetSessionID] = memorySession{
		record:    auth.SessionRecord{OwnerID: ownerID, SecretHash: secretHash},
		expiresAt: time.Now().Add(ttl),
	}
	return resetSessionID, nil
}

func (store *memoryResetStore) Get(_ context.Context, resetSessionID string) (*auth.SessionRecord, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	session, found := store.resets[resetSessionID]
	if !found || time.Now().After(session.expiresAt) {
		return nil, auth.ErrResetSessionInvalid
	}
	record := session.record
	return &record, nil
}

func (store *memoryResetStore) Delete(_ context.Context, resetSessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.resets, resetSessionID)
	return nil
}

type memoryUserRepository struct {
	mu    sync.Mutex
	byID  map[string]*auth.User
	email map[string]string
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{
		byID:  make(map[string]*auth.User),
		email: make(map[string]string),
	}
}

func (repository *memoryUserRepository) Create(_ context.Context, user *auth.User) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, taken := repository.email[user.Email]; taken {
		return auth.ErrEmailTaken
	}
	clone := *user
	repository.byID[user.ID] = &clone
	repository.email[user.Email] = user.ID
	return nil
}

func (repository *memoryUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	userID, found := repository.email[email]
	if !found {
		return nil, dberr.ErrNotFound
	}
	clone := *repository.byID[userID]
	return &clone, nil
}

func (repository *memoryUserRepository) FindByID(_ context.Context, userID string) (*auth.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, found := repository.byID[userID]
	if !found {
		return nil, dberr.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (repository *memoryUserRepository) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, found := repository.byID[userID]
	if !found {
		return dberr.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (repository *memoryUserRepository) UpdateFields(_ context.Context, userID string, update auth.UserUpdate) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, found := repository.byID[userID]
	if !found {
		return dberr.ErrNotFound
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.About != nil {
		user.About = *update.About
	}
	user.UpdatedAt = time.Now().UTC()
	return nil
}

type capturingMailer struct {
	mu           sync.Mutex
	emails       []string
	sessions     []string
	failDelivery error
}

func (mailer *capturingMailer) SendResetEmail(_ context.Context, email, resetSessionID string) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()

	if mailer.failDelivery != nil {
		return mailer.failDelivery
	}
	mailer.emails = append(mailer.emails, email)
	mailer.sessions = append(mailer.sessions, resetSessionID)
	return nil
}

// # Harness

type serviceHarness struct {
	service  *auth.Service
	users    *memoryUserRepository
	sessions *memorySessionStore
	resets   *memoryResetStore
	mailer   *capturingMailer
	signer   *sec.TokenService
}

func newServiceHarness(t *testing.T, config auth.Config) *serviceHarness {
	t.Helper()

	harness := &serviceHarness{
		users:    newMemoryUserRepository(),
		sessions: newMemorySessionStore(),
		resets:   newMemoryResetStore(),
		mailer:   &capturingMailer{},
		signer:   sec.NewTokenService("test-secret", "finai.app", 15*time.Minute),
	}
	harness.service = auth.NewService(
		harness.users,
		harness.sessions,
		harness.resets,
		harness.signer,
		harness.mailer,
		config,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return harness
}

func defaultConfig() auth.Config {
	return auth.Config{
		RefreshTTL: 30 * 24 * time.Hour,
		ResetTTL:   15 * time.Minute,
	}
}

// signupAndSignin registers a user and opens one session.
func (harness *serviceHarness) signupAndSignin(t *testing.T, email, password string) (*auth.User, *auth.GrantedSession) {
	t.Helper()

	user, err := harness.service.Signup(context.Background(), auth.SignupInput{
		Email:    email,
		Password: password,
		Username: "trader",
	})
	require.NoError(t, err)

	granted, err := harness.service.Signin(context.Background(), email, password)
	require.NoError(t, err)

	return user, granted
}

// # Signup

func TestSignup(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())

	user, err := harness.service.Signup(context.Background(), auth.SignupInput{
		Email:     "duc@finai.app",
		Password:  "open sesame 42",
		Username:  "ducco",
		FirstName: "Duc",
		LastName:  "Codon",
		Phone:     "0901234567",
		Location:  "Ho Chi Minh City",
		About:     "Swing trader",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "duc@finai.app", user.Email)
	assert.Equal(t, "ducco", user.Username)

	// Stored credential is a hash, never the plaintext. Profile fields are
	// persisted with the account, not silently dropped.
	stored, err := harness.users.FindByEmail(context.Background(), "duc@finai.app")
	require.NoError(t, err)
	assert.NotEqual(t, "open sesame 42", stored.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("open sesame 42", stored.PasswordHash))
	assert.Equal(t, "Duc", stored.FirstName)
	assert.Equal(t, "Codon", stored.LastName)
	assert.Equal(t, "0901234567", stored.Phone)
	assert.Equal(t, "Ho Chi Minh City", stored.Location)
	assert.Equal(t, "Swing trader", stored.About)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())

	input := auth.SignupInput{Email: "duc@finai.app", Password: "open sesame 42", Username: "ducco"}
	_, err := harness.service.Signup(context.Background(), input)
	require.NoError(t, err)

	_, err = harness.service.Signup(context.Background(), input)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

// # Signin

func TestSignin(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	user, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	// The access token verifies and identifies the user.
	claims, err := harness.signer.Verify(granted.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, user.Email, claims.Email)

	// A refresh credential pair was minted.
	assert.NotEmpty(t, granted.SessionID)
	assert.NotEmpty(t, granted.RefreshSecret)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), granted.RefreshExpiresAt, time.Minute)
}

func TestSignin_WrongPassword(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	_, err := harness.service.Signin(context.Background(), "duc@finai.app", "wrong password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSignin_UnknownEmail(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())

	// Unknown email and wrong password must be indistinguishable.
	_, err := harness.service.Signin(context.Background(), "nobody@finai.app", "whatever pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSignin_StoresOnlySecretHash(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	storedHash, found := harness.sessions.storedHash(granted.SessionID)
	require.True(t, found)

	assert.NotEqual(t, granted.RefreshSecret, storedHash)
	assert.Equal(t, sec.HashOpaqueSecret(granted.RefreshSecret), storedHash)
}

// # Refresh

func TestRefresh_RotatesSession(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	user, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	rotated, err := harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	require.NoError(t, err)

	assert.Equal(t, user.ID, rotated.User.ID)
	assert.NotEqual(t, granted.SessionID, rotated.SessionID)
	assert.NotEqual(t, granted.RefreshSecret, rotated.RefreshSecret)

	// The consumed pair is dead.
	_, err = harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	// The successor pair works.
	_, err = harness.service.Refresh(context.Background(), rotated.SessionID, rotated.RefreshSecret)
	assert.NoError(t, err)
}

func TestRefresh_ReuseRevokesSession(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	// A live session id presented with the wrong secret is credential reuse.
	_, err := harness.service.Refresh(context.Background(), granted.SessionID, "stolen-or-stale-secret")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	// The whole session chain is dead, even for the legitimate secret.
	_, err = harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestRefresh_ConcurrentUseSingleWinner(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	// Two clients racing with the same credential pair: the store arbitrates,
	// at most one rotation goes through and the loser sees a dead session.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, auth.ErrSessionNotFound):
			losses++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}

func TestRefresh_ExpiredSession(t *testing.T) {
	// A negative TTL makes every minted session already expired.
	config := defaultConfig()
	config.RefreshTTL = -1 * time.Second

	harness := newServiceHarness(t, config)
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	_, err := harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestRefresh_UnknownSession(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())

	_, err := harness.service.Refresh(context.Background(), uuid.NewRandom(), "any-secret")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

// # Logout

func TestLogout(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	err := harness.service.Logout(context.Background(), granted.SessionID, granted.RefreshSecret)
	require.NoError(t, err)

	// The pair no longer refreshes.
	_, err = harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	// A second logout of the same pair reports the dead session; the HTTP
	// boundary swallows this to keep logout idempotent for clients.
	err = harness.service.Logout(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestLogout_WrongSecretRevokes(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	err := harness.service.Logout(context.Background(), granted.SessionID, "stolen-or-stale-secret")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	// Reuse on logout kills the chain just like reuse on refresh.
	_, err = harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

// # Password Reset

func TestForgotPassword(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	resetSessionID, err := harness.service.ForgotPassword(context.Background(), "duc@finai.app")
	require.NoError(t, err)
	require.NotEmpty(t, resetSessionID)

	// The reset link went to the right mailbox with the right session id.
	require.Len(t, harness.mailer.emails, 1)
	assert.Equal(t, "duc@finai.app", harness.mailer.emails[0])
	assert.Equal(t, resetSessionID, harness.mailer.sessions[0])
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())

	_, err := harness.service.ForgotPassword(context.Background(), "nobody@finai.app")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.Empty(t, harness.mailer.emails)
}

func TestForgotPassword_DeliveryFailure(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")
	harness.mailer.failDelivery = errors.New("smtp relay down")

	_, err := harness.service.ForgotPassword(context.Background(), "duc@finai.app")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	_, granted := harness.signupAndSignin(t, "duc@finai.app", "old password 42")

	resetSessionID, err := harness.service.ForgotPassword(context.Background(), "duc@finai.app")
	require.NoError(t, err)

	err = harness.service.ResetPassword(context.Background(), resetSessionID, "new password 42")
	require.NoError(t, err)

	// Old password no longer signs in; new one does.
	_, err = harness.service.Signin(context.Background(), "duc@finai.app", "old password 42")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = harness.service.Signin(context.Background(), "duc@finai.app", "new password 42")
	assert.NoError(t, err)

	// Refresh sessions issued under the old password are all revoked.
	_, err = harness.service.Refresh(context.Background(), granted.SessionID, granted.RefreshSecret)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestResetPassword_SingleUse(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	harness.signupAndSignin(t, "duc@finai.app", "old password 42")

	resetSessionID, err := harness.service.ForgotPassword(context.Background(), "duc@finai.app")
	require.NoError(t, err)

	require.NoError(t, harness.service.ResetPassword(context.Background(), resetSessionID, "new password 42"))

	// The consumed reset session cannot change the password again.
	err = harness.service.ResetPassword(context.Background(), resetSessionID, "evil password 42")
	assert.ErrorIs(t, err, auth.ErrResetSessionInvalid)

	_, err = harness.service.Signin(context.Background(), "duc@finai.app", "new password 42")
	assert.NoError(t, err)
}

func TestResetPassword_UnknownSession(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())

	err := harness.service.ResetPassword(context.Background(), uuid.NewRandom(), "new password 42")
	assert.ErrorIs(t, err, auth.ErrResetSessionInvalid)
}

func TestResetPassword_ExpiredSession(t *testing.T) {
	config := defaultConfig()
	config.ResetTTL = -1 * time.Second

	harness := newServiceHarness(t, config)
	harness.signupAndSignin(t, "duc@finai.app", "old password 42")

	resetSessionID, err := harness.service.ForgotPassword(context.Background(), "duc@finai.app")
	require.NoError(t, err)

	err = harness.service.ResetPassword(context.Background(), resetSessionID, "new password 42")
	assert.ErrorIs(t, err, auth.ErrResetSessionInvalid)
}

// # Profile

func TestUpdateProfile(t *testing.T) {
	harness := newServiceHarness(t, defaultConfig())
	user, _ := harness.signupAndSignin(t, "duc@finai.app", "open sesame 42")

	location := "Ho Chi Minh City"
	updated, err := harness.service.UpdateProfile(context.Background(), user.ID, auth.UserUpdate{
		Location: &location,
	})
	require.NoError(t, err)

	assert.Equal(t, "Ho Chi Minh City", updated.Location)
	// Untouched fields survive a partial update.
	assert.Equal(t, "trader", updated.Username)
	assert.Equal(t, "duc@finai.app", updated.Email)
}
