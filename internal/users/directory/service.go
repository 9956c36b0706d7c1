// Copyright (c) 2026 Motorparc. All rights reserved.

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/motorparc/motorparc/internal/platform/ctxutil"
	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/pkg/uuid"
)

// # Contracts & Types

// Service implements the user directory use cases.
//
// # Concurrency
//
// Every mutating operation runs under a single write mutex so the
// uniqueness and last-admin invariants are checked against a consistent
// snapshot. A check-then-act race (two concurrent deletes of two different
// admins, each observing "not the last admin") is prevented by serializing
// writes rather than by optimistic retry.
// Reads bypass the mutex and rely on the repository's atomic publish.
type Service struct {
	repository UserRepository

	// writeMu serializes Create, Delete, and UpdatePassword.
	writeMu sync.Mutex
}

// NewService constructs a directory [Service] over the given repository.
func NewService(repository UserRepository) *Service {
	return &Service{repository: repository}
}

// # Account Creation

// CreateInput holds the data required to enroll a new directory account.
type CreateInput struct {
	Username  string
	Password  string
	Role      sec.Role
	CreatedBy string
}

/*
Create validates, hashes, and persists a brand new directory account.

Description: Normalizes the username, enforces case-insensitive uniqueness,
and stores only the salted bcrypt hash of the password.

Parameters:
  - context: context.Context
  - input: CreateInput

Returns:
  - *UserRecord: Created entity (hash never serialized outward)
  - err: ErrInvalidUsername, ErrInvalidRole, ErrUsernameTaken, or storage errors
*/
func (service *Service) Create(context context.Context, input CreateInput) (*UserRecord, error) {
	normalized := NormalizeUsername(input.Username)
	if normalized == "" {
		return nil, ErrInvalidUsername
	}

	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}

	// Prevent storing plain-text passwords. Default cost balances security
	// against CPU utilization during onboarding bursts.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("directory_service_hash_failed: %w", err)
	}

	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	// Uniqueness check against the live record set, under the write mutex.
	if _, err := service.repository.FindByUsername(context, normalized); err == nil {
		return nil, ErrUsernameTaken
	}

	record := &UserRecord{
		ID:           uuid.New(),
		Username:     input.Username,
		PasswordHash: hashedPassword,
		Role:         input.Role,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    time.Now(),
	}

	if err := service.repository.Create(context, record); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "directory_user_created",
		slog.String("username", record.Username),
		slog.String("role", string(record.Role)),
		slog.String("created_by", record.CreatedBy),
	)

	return record, nil
}

// # Account Removal

/*
Delete removes an account from the directory.

Description: Refuses to remove the final Admin record. The admin count and
the removal execute under the write mutex, so the invariant holds against
the live record set at the moment of deletion. The repository re-checks
the count atomically with the removal, which covers deployments where
several API instances share one store.

Parameters:
  - context: context.Context
  - username: string
  - requestedBy: string (acting username, for audit)

Returns:
  - *UserRecord: The removed entity
  - err: ErrUserNotFound, ErrLastAdmin, or storage errors
*/
func (service *Service) Delete(context context.Context, username, requestedBy string) (*UserRecord, error) {
	normalized := NormalizeUsername(username)

	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	record, err := service.repository.FindByUsername(context, normalized)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// Last-admin invariant: the directory must always retain at least one
	// Admin once it has been bootstrapped.
	if record.Role == sec.RoleAdmin {
		adminCount, err := service.repository.CountAdmins(context)
		if err != nil {
			return nil, fmt.Errorf("directory_service_admin_count_failed: %w", err)
		}
		if adminCount <= 1 {
			return nil, ErrLastAdmin
		}
	}

	if err := service.repository.Delete(context, normalized); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "directory_user_deleted",
		slog.String("username", record.Username),
		slog.String("requested_by", requestedBy),
	)

	return record, nil
}

// # Queries

/*
List returns a page of directory records in stable insertion order.

Parameters:
  - context: context.Context
  - limit: int
  - offset: int

Returns:
  - []*UserRecord: Page of records (hashes never serialized outward)
  - int: Total record count for pagination metadata
  - err: Retrieval failures
*/
func (service *Service) List(context context.Context, limit, offset int) ([]*UserRecord, int, error) {
	records, err := service.repository.List(context, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := service.repository.Count(context)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

/*
Lookup returns the record matching the username, case-insensitively.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *UserRecord: Hydrated entity
  - err: ErrUserNotFound or retrieval failures
*/
func (service *Service) Lookup(context context.Context, username string) (*UserRecord, error) {
	return service.repository.FindByUsername(context, NormalizeUsername(username))
}

// # Credential Verification

/*
VerifyCurrentPassword checks a candidate password against the stored hash.

Description: Returns false — never an error — for unknown usernames, so an
external caller cannot distinguish "wrong password" from "no such user".
The comparison itself is bcrypt's constant-time verify.

Parameters:
  - context: context.Context
  - username: string
  - candidate: string

Returns:
  - bool: Whether the candidate matches
*/
func (service *Service) VerifyCurrentPassword(context context.Context, username, candidate string) bool {
	record, err := service.repository.FindByUsername(context, NormalizeUsername(username))
	if err != nil {
		// Internal logging may distinguish; the return value never does.
		ctxutil.GetLogger(context).DebugContext(context, "password_verify_unknown_user")
		return false
	}

	return sec.CheckPasswordHash(candidate, record.PasswordHash)
}

/*
UpdatePassword re-hashes and replaces the stored credential.

Parameters:
  - context: context.Context
  - username: string
  - newPassword: string

Returns:
  - err: ErrUserNotFound if the record vanished (race with a concurrent
    delete), hashing failures, or storage errors
*/
func (service *Service) UpdatePassword(context context.Context, username, newPassword string) error {
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("directory_service_rehash_failed: %w", err)
	}

	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	if err := service.repository.UpdatePassword(context, NormalizeUsername(username), hashedPassword); err != nil {
		return err
	}

	ctxutil.GetLogger(context).InfoContext(context, "directory_password_updated",
		slog.String("username", username),
	)

	return nil
}
