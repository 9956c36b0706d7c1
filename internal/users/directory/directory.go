// Copyright (c) 2026 Motorparc. All rights reserved.

/*
Package directory implements the user directory of the Motorparc platform.

It owns the canonical set of user records and the safety invariants around
them: case-insensitive username uniqueness, verified password changes, and
the guarantee that the directory never loses its last Admin.

# Architecture

This layer is the "Truth" of the system for identity data. The session
subsystem never mutates it — it only reads role/existence to corroborate a
session at the moment of issuance.
*/
package directory

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/motorparc/motorparc/internal/platform/apperr"
	"github.com/motorparc/motorparc/internal/platform/sec"
)

// # Directory Errors

// Shared sentinels so callers can branch with errors.Is while the HTTP
// layer still maps each to a distinct status and message.
var (
	// ErrInvalidUsername rejects empty or whitespace-only usernames.
	ErrInvalidUsername = apperr.ValidationError("Username is empty or invalid")

	// ErrInvalidRole rejects roles outside the recognized tiers.
	ErrInvalidRole = apperr.ValidationError("Role must be Admin or Staff")

	// ErrUsernameTaken signals a case-insensitive uniqueness collision.
	ErrUsernameTaken = apperr.Conflict("Username is already taken")

	// ErrUserNotFound signals that no record matches the folded username.
	ErrUserNotFound = apperr.NotFound("User")

	// ErrLastAdmin protects the directory from losing its final Admin.
	ErrLastAdmin = apperr.Forbidden("Cannot delete the last Admin account")
)

// # Domain Entities

// UserRecord represents an account in the dealership's user directory.
type UserRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	Role         sec.Role  `json:"role"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the directory domain.
const (
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldRole            = "role"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldMessage         = "message"
)

// # Username Normalization

// usernameFolder performs Unicode case folding, which is stricter than a
// plain ToLower (it also handles cases like the Kelvin sign or dotless i).
var usernameFolder = cases.Fold()

// NormalizeUsername trims surrounding whitespace and case-folds the value.
//
// The folded form is the uniqueness key: "Admin1" and "admin1" normalize to
// the same record. The original casing is preserved separately for display.
func NormalizeUsername(username string) string {
	return usernameFolder.String(strings.TrimSpace(username))
}
