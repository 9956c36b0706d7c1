// Copyright (c) 2026 Motorparc. All rights reserved.

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/motorparc/motorparc/internal/platform/apperr"
	"github.com/motorparc/motorparc/internal/platform/constants"
	"github.com/motorparc/motorparc/internal/platform/ctxutil"
	"github.com/motorparc/motorparc/internal/platform/respond"
	"github.com/motorparc/motorparc/internal/platform/sec"
)

// SessionAuthenticator defines the interface needed to verify sessions in middleware.
//
// # Why an interface?
//
// Defining SessionAuthenticator here decouples the middleware from the
// [sec.Guard] implementation, allowing us to easily inject fakes during
// unit testing.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token, ip, userAgent string) (*sec.SessionPayload, error)
}

// Authenticate extracts and verifies the session token from the request.
//
// # Flow
//  1. Look for 'Authorization: Bearer <token>', then the session cookie.
//  2. If absent, request proceeds as anonymous.
//  3. If present, verify signature, expiry, and client fingerprint via the guard.
//  4. Inject [*sec.SessionPayload] into the request context for downstream use.
//
// Every verification failure is surfaced to the client as the same generic
// denial; the precise cause (bad signature, expired, fingerprint divergence)
// is only visible in server-side logs.
func Authenticate(guard SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token := extractToken(request)

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Session Verification ───────────────────────────────────────
			session, err := guard.Authenticate(request.Context(), token, RealIP(request), request.UserAgent())
			if err != nil {
				logAuthFailure(request, err)
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired session"))
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithSession(request.Context(), session)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		session := ctxutil.GetSession(request.Context())
		if session == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests if the authenticated user doesn't hold the required role.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. It automatically implies
// [RequireAuth] so you don't need to mount both.
//
// # Flow
//  1. Check if [*sec.SessionPayload] exists in context (implies AuthN).
//  2. Check the session role against the required tier via [sec.Role.AtLeast].
//  3. If insufficient, abort with HTTP 403 Forbidden.
func RequireRole(role sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			session := ctxutil.GetSession(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if session == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !session.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// extractToken pulls the opaque session token from the Authorization header
// or, failing that, the session cookie.
func extractToken(request *http.Request) string {
	authHeader := request.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}

	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// logAuthFailure records the precise verification failure server-side.
func logAuthFailure(request *http.Request, err error) {
	logger := ctxutil.GetLogger(request.Context())

	reason := "invalid_token"
	switch {
	case errors.Is(err, sec.ErrExpired):
		reason = "expired"
	case errors.Is(err, sec.ErrFingerprintMismatch):
		reason = "fingerprint_mismatch"
	}

	logger.WarnContext(request.Context(), "session_rejected",
		slog.String("reason", reason),
		slog.String("ip", RealIP(request)),
	)
}
