// Copyright (c) 2026 Motorparc. All rights reserved.

/*
Package auth implements the session lifecycle of the Motorparc platform.

It covers credential verification, failed-login throttling, signed session
issuance, and verified password changes. The package never stores sessions:
tokens are self-contained and validated statelessly by the access guard.

# Architecture

  - Service: Orchestrates login, logout, and password changes.
  - Directory: The user directory is the source of truth for credentials.
  - Guard: Issues and verifies signed, fingerprint-bound session tokens.
*/
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/motorparc/motorparc/internal/platform/apperr"
	"github.com/motorparc/motorparc/internal/platform/constants"
	"github.com/motorparc/motorparc/internal/platform/ctxutil"
	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/internal/users/directory"
)

// # Contracts & Types

// Shared sentinels for the login flow.
var (
	// ErrBadCredentials is deliberately identical for "no such user" and
	// "wrong password" so login responses leak no account existence signal.
	ErrBadCredentials = apperr.Unauthorized("Invalid username or password")

	// ErrLoginThrottled signals too many failed attempts for one account.
	ErrLoginThrottled = apperr.RateLimited(int(constants.LoginAttemptWindow.Seconds()))

	// ErrWrongCurrentPassword rejects an unverified password change.
	ErrWrongCurrentPassword = apperr.Unauthorized("Current password is incorrect")
)

// AttemptLimiter throttles failed logins per account.
type AttemptLimiter interface {
	// Allow reports whether the account may attempt a login right now.
	// Returns ErrLoginThrottled when the failure budget is exhausted.
	Allow(ctx context.Context, username string) error

	// RecordFailure counts one failed attempt against the account.
	RecordFailure(ctx context.Context, username string)

	// Reset clears the failure counter after a successful login.
	Reset(ctx context.Context, username string)
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to credential checks,
// throttling, or token issuance must be reviewed by the security team.
type Service struct {
	users   *directory.Service
	guard   *sec.Guard
	limiter AttemptLimiter
}

// NewService constructs a new [Service] with its dependencies.
func NewService(users *directory.Service, guard *sec.Guard, limiter AttemptLimiter) *Service {
	return &Service{
		users:   users,
		guard:   guard,
		limiter: limiter,
	}
}

// # Login Flow

// LoginInput holds the credentials and client context for one login attempt.
type LoginInput struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult carries the issued session back to the transport layer.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *directory.UserRecord
}

/*
Login verifies credentials and issues a signed session token.

Description: The token embeds the account's role and a fingerprint of the
client at issuance, so later requests are validated without a store lookup.
Failed attempts are counted per account; past the budget the account is
throttled for the rolling window.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Token, expiry, and the account profile
  - err: ErrBadCredentials, ErrLoginThrottled, or issuance errors
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	if service.limiter != nil {
		if err := service.limiter.Allow(context, input.Username); err != nil {
			return nil, err
		}
	}

	record, err := service.users.Lookup(context, input.Username)
	if err != nil {
		// Unknown account and wrong password share one failure path.
		service.recordFailure(context, input.Username)
		return nil, ErrBadCredentials
	}

	if !sec.CheckPasswordHash(input.Password, record.PasswordHash) {
		service.recordFailure(context, input.Username)
		return nil, ErrBadCredentials
	}

	// The role is corroborated against the directory here, at issuance.
	// The token is self-contained afterwards.
	token, err := service.guard.IssueSession(record.Username, record.Role, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if service.limiter != nil {
		service.limiter.Reset(context, input.Username)
	}

	ctxutil.GetLogger(context).InfoContext(context, "auth_login_succeeded",
		slog.String("username", record.Username),
		slog.String("role", string(record.Role)),
	)

	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(sec.MaxSessionAge),
		User:      record,
	}, nil
}

// recordFailure counts a failed attempt and logs it without echoing secrets.
func (service *Service) recordFailure(context context.Context, username string) {
	if service.limiter != nil {
		service.limiter.RecordFailure(context, username)
	}

	ctxutil.GetLogger(context).WarnContext(context, "auth_login_failed",
		slog.String("username", username),
	)
}

// # Password Changes

/*
ChangePassword replaces the caller's credential after re-verification.

Description: The current password must be presented and verified even though
the caller already holds a valid session. This blocks an attacker with a
stolen token from silently taking over the account.

Parameters:
  - context: context.Context
  - username: string (from the authenticated session, never the body)
  - currentPassword: string
  - newPassword: string

Returns:
  - err: ErrWrongCurrentPassword, ErrUserNotFound, or storage errors
*/
func (service *Service) ChangePassword(context context.Context, username, currentPassword, newPassword string) error {
	if !service.users.VerifyCurrentPassword(context, username, currentPassword) {
		ctxutil.GetLogger(context).WarnContext(context, "auth_password_change_denied",
			slog.String("username", username),
		)
		return ErrWrongCurrentPassword
	}

	return service.users.UpdatePassword(context, username, newPassword)
}
