// Copyright (c) 2026 Motorparc. All rights reserved.

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motorparc/motorparc/internal/platform/constants"
	"github.com/motorparc/motorparc/internal/platform/middleware"
	requestutil "github.com/motorparc/motorparc/internal/platform/request"
	"github.com/motorparc/motorparc/internal/platform/respond"
	"github.com/motorparc/motorparc/internal/platform/validate"
)

// # Field Identifiers

// Global field names for validation and identity mapping in the auth domain.
const (
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldMessage         = "message"
)

// # Definitions & Constructors

// Handler implements the session lifecycle HTTP endpoints.
//
// # Scope
//
// This handler owns the transport concerns of authentication: the session
// cookie, the token response shape, and input validation. All credential
// decisions live in [Service].
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /login           : Verifies credentials and issues a session.
//   - POST /logout          : Clears the session cookie.
//   - POST /change-password : Replaces the caller's credential (verified).
//   - GET  /me              : Returns the authenticated session identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Post("/change-password", handler.changePassword)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials against the user directory, issues a
signed fingerprint-bound token, and injects it as a secure cookie. The token
is also returned in the body for non-browser clients using Bearer headers.

Request:
  - Body: loginRequest (Username, Password)

Response:
  - 200: Session: Token, expiry, and account profile
  - 401: ErrBadCredentials: Unknown account or wrong password
  - 429: ErrLoginThrottled: Failure budget exhausted for this account
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Username:  input.Username,
		Password:  input.Password,
		IPAddress: getClientIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    result.Token,
		Path:     constants.SessionCookiePath,
		Expires:  result.ExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.OK(writer, map[string]any{
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user":       result.User,
	})
}

/*
Logout terminates the current session on this client.

POST /api/v1/auth/logout

Description: Clears the session cookie. Tokens are self-contained, so there
is no server-side session record to delete; the token simply ages out at its
fixed expiry.

Response:
  - 204: No Content: Cookie cleared
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.NoContent(writer)
}

/*
ChangePassword updates the authenticated user's password.

POST /api/v1/auth/change-password

Description: Requires the current password even with a valid session, so a
stolen token alone cannot take over the account.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success: Password changed
  - 401: ErrWrongCurrentPassword: Re-verification failed
  - 400: ErrInvalidJSON: Weak password or validation failure
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	username, err := requestutil.RequiredUsername(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ChangePassword(
		request.Context(),
		username,
		input.CurrentPassword,
		input.NewPassword,
	); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password changed successfully",
	})
}

/*
Me returns the identity carried by the authenticated session.

GET /api/v1/auth/me

Response:
  - 200: Identity: Username, role, and issuance time
  - 401: ErrUnauthorized: No valid session
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	session, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"username":  session.Username,
		"role":      session.Role,
		"issued_at": session.IssuedTime(),
	})
}

// getClientIP tries to extract the real IP address of a user over proxy environments.
func getClientIP(request *http.Request) string {

	ip := request.Header.Get(constants.HeaderXRealIP)
	if ip == "" {
		ip = request.Header.Get(constants.HeaderXForwardedFor)
	}

	if ip == "" {
		ip = request.RemoteAddr
	}
	return ip
}
