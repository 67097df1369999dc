// Copyright (c) 2026 Finai. All rights reserved.
// Author: duccodon.dev@gmail.com

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/duccodon/finai/internal/platform/ctxutil"
	"github.com/duccodon/finai/internal/platform/middleware"
	requestutil "github.com/duccodon/finai/internal/platform/request"
	"github.com/duccodon/finai/internal/platform/respond"
	"github.com/duccodon/finai/internal/platform/validate"
)

// # HTTP Boundary

// CookieConfig describes how the refresh session cookie is written.
type CookieConfig struct {
	// Name of the cookie (default "Host-finai_rft").
	Name string
	// Secure and SameSite harden the cookie in production; development
	// relaxes to SameSite=Lax over plain HTTP.
	Secure   bool
	SameSite http.SameSite
}

// Handler exposes the auth protocols over HTTP.
type Handler struct {
	service  *Service
	verifier middleware.TokenVerifier
	cookie   CookieConfig
}

// NewHandler constructs the auth [Handler].
func NewHandler(service *Service, verifier middleware.TokenVerifier, cookie CookieConfig) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		cookie:   cookie,
	}
}

// Routes mounts the auth endpoints.
//
// Everything except the profile endpoints is public: refresh and logout
// authenticate through the cookie credential, not the bearer token.
// GET /verify is NOT mounted here; its status-only contract is incompatible
// with the Authenticate middleware's error envelope, so the server registers
// [Handler.Verify] outside the authenticated group.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/signup", handler.signup)
	router.Post("/signin", handler.signin)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Authenticate runs on the surrounding group; RequireAuth turns the
	// anonymous pass-through into a hard 401 for the profile endpoints.
	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Get("/me", handler.getProfile)
		protected.Patch("/me", handler.updateProfile)
	})

	return router
}

// # Cookie Codec
//
// The cookie value is a URL-escaped JSON document carrying both halves of
// the refresh credential:
//
//	{"token":"<opaque secret>","jti":"<session id>"}
//
// Escaping is mandatory: raw JSON contains characters that are illegal in
// a cookie-octet.

type sessionCookie struct {
	Token string `json:"token"`
	JTI   string `json:"jti"`
}

func encodeSessionCookie(secret, sessionID string) string {
	payload, _ := json.Marshal(sessionCookie{Token: secret, JTI: sessionID})
	return url.QueryEscape(string(payload))
}

func decodeSessionCookie(raw string) (*sessionCookie, error) {
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, errors.New("auth: malformed session cookie encoding")
	}

	var payload sessionCookie
	if err := json.Unmarshal([]byte(unescaped), &payload); err != nil {
		return nil, errors.New("auth: malformed session cookie payload")
	}
	if payload.Token == "" || payload.JTI == "" {
		return nil, errors.New("auth: incomplete session cookie payload")
	}

	return &payload, nil
}

// setSessionCookie writes the refresh credential pair to the client.
func (handler *Handler) setSessionCookie(writer http.ResponseWriter, granted *GrantedSession) {
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.cookie.Name,
		Value:    encodeSessionCookie(granted.RefreshSecret, granted.SessionID),
		Path:     "/",
		MaxAge:   int(handler.service.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   handler.cookie.Secure,
		SameSite: handler.cookie.SameSite,
	})
}

// clearSessionCookie expires the refresh cookie on the client.
func (handler *Handler) clearSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   handler.cookie.Secure,
		SameSite: handler.cookie.SameSite,
	})
}

// readSessionCookie extracts and decodes the refresh credential pair.
func (handler *Handler) readSessionCookie(request *http.Request) (*sessionCookie, error) {
	cookie, err := request.Cookie(handler.cookie.Name)
	if err != nil {
		return nil, err
	}
	return decodeSessionCookie(cookie.Value)
}

// # Request Payloads

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	Location        string `json:"location"`
	About           string `json:"about"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	ResetSessionID string `json:"reset_session_id"`
	NewPassword    string `json:"new_password"`
}

type updateProfileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Location  *string `json:"location"`
	About     *string `json:"about"`
}

// # Handlers

// phonePattern accepts plain digit strings, 7 to 15 characters.
var phonePattern = regexp.MustCompile(`^\d{7,15}$`)

// signup handles POST /signup.
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {

	var payload signupRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Required(FieldPassword, payload.Password).
		MinLen(FieldPassword, payload.Password, MinPasswordLength).
		Required(FieldConfirmPassword, payload.ConfirmPassword).
		Custom(FieldConfirmPassword, payload.ConfirmPassword != payload.Password, "Must match password").
		Required(FieldUsername, payload.Username).
		MaxLen(FieldUsername, payload.Username, 64)
	if payload.Phone != "" {
		validator.Custom(FieldPhone, !phonePattern.MatchString(payload.Phone), "Must be digits (7-15 chars)")
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Signup(request.Context(), SignupInput{
		Email:     payload.Email,
		Password:  payload.Password,
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Location:  payload.Location,
		About:     payload.About,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// signin handles POST /signin. On success the refresh credential pair is
// written to the cookie and the access token returned in the body.
func (handler *Handler) signin(writer http.ResponseWriter, request *http.Request) {

	var payload signinRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	err := validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Required(FieldPassword, payload.Password).
		Err()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	granted, err := handler.service.Signin(request.Context(), payload.Email, payload.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, granted)
	respond.OK(writer, map[string]interface{}{
		FieldUser:        granted.User,
		FieldAccessToken: granted.AccessToken,
	})
}

// refresh handles POST /refresh.
//
// A missing or unreadable cookie is NOT an error status: the dashboard
// polls this endpoint on load, and a 401 here would bounce signed-out
// visitors into interceptor retry loops. They get a 200 with an error
// field instead and treat it as "not signed in".
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {

	credential, err := handler.readSessionCookie(request)
	if err != nil {
		respond.JSON(writer, http.StatusOK, map[string]string{"error": "no refresh token"})
		return
	}

	granted, err := handler.service.Refresh(request.Context(), credential.JTI, credential.Token)
	if err != nil {
		handler.clearSessionCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, granted)
	respond.OK(writer, map[string]interface{}{
		FieldUser:        granted.User,
		FieldAccessToken: granted.AccessToken,
	})
}

// logout handles POST /logout.
//
// Always succeeds and always clears the cookie: a client signing out with
// an already-dead session still deserves a clean slate. Server-side
// failures are logged, never surfaced.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {

	if credential, err := handler.readSessionCookie(request); err == nil {
		if err := handler.service.Logout(request.Context(), credential.JTI, credential.Token); err != nil {
			logger := ctxutil.GetLogger(request.Context())
			logger.DebugContext(request.Context(), "logout_revoke_skipped",
				"error", err.Error(),
			)
		}
	}

	handler.clearSessionCookie(writer)
	respond.OK(writer, map[string]string{
		FieldMessage: "Logged out successfully!",
	})
}

// Verify handles GET /verify: a lightweight access-token check for
// sibling services and the API gateway. Status-only by contract; callers
// branch on 200 vs 401 and never parse a body, which is why this handler
// is registered outside the Authenticate group.
func (handler *Handler) Verify(writer http.ResponseWriter, request *http.Request) {

	authHeader := request.Header.Get("Authorization")
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		writer.WriteHeader(http.StatusUnauthorized)
		return
	}

	if _, err := handler.verifier.Verify(token); err != nil {
		writer.WriteHeader(http.StatusUnauthorized)
		return
	}

	writer.WriteHeader(http.StatusOK)
}

// forgotPassword handles POST /forgot-password.
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {

	var payload forgotPasswordRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	err := validator.
		Required(FieldEmail, payload.Email).
		Email(FieldEmail, payload.Email).
		Err()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	resetSessionID, err := handler.service.ForgotPassword(request.Context(), payload.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := map[string]string{
		FieldMessage: "Password reset email sent",
	}
	if handler.service.ExposeResetSessionID() {
		response[FieldResetSessionID] = resetSessionID
	}

	respond.OK(writer, response)
}

// resetPassword handles POST /reset-password.
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {

	var payload resetPasswordRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	err := validator.
		Required(FieldResetSessionID, payload.ResetSessionID).
		UUID(FieldResetSessionID, payload.ResetSessionID).
		Required(FieldNewPassword, payload.NewPassword).
		MinLen(FieldNewPassword, payload.NewPassword, MinPasswordLength).
		Err()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResetPassword(request.Context(), payload.ResetSessionID, payload.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password reset successfully",
	})
}

// getProfile handles GET /me.
func (handler *Handler) getProfile(writer http.ResponseWriter, request *http.Request) {

	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.GetUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// updateProfile handles PATCH /me.
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {

	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload updateProfileRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if payload.Username != nil {
		validator.Required(FieldUsername, *payload.Username).MaxLen(FieldUsername, *payload.Username, 64)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.UpdateProfile(request.Context(), userID, UserUpdate{
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Location:  payload.Location,
		About:     payload.About,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}
