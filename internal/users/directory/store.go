// Copyright (c) 2026 Motorparc. All rights reserved.

package directory

import (
	"context"
)

// # User Data Access

// UserRepository defines the data access contract for directory records.
//
// All lookups key on the case-folded username (see [NormalizeUsername]).
// Implementations must never expose a partially-written record to readers.
type UserRepository interface {

	/*
		FindByUsername returns the record whose folded username matches.

		Parameters:
		  - context: context.Context
		  - normalized: string (case-folded username)

		Returns:
		  - *UserRecord: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByUsername(context context.Context, normalized string) (*UserRecord, error)

	/*
		Create persists a brand-new user record.

		Parameters:
		  - context: context.Context
		  - record: *UserRecord

		Returns:
		  - error: apperr.Conflict on folded-username collision, or persistence failures
	*/
	Create(context context.Context, record *UserRecord) error

	/*
		Delete removes the record whose folded username matches.

		Description: Implementations enforce the last-admin invariant
		atomically with the removal (lock or transaction), so the check
		holds even when multiple processes share the store.

		Parameters:
		  - context: context.Context
		  - normalized: string

		Returns:
		  - error: ErrUserNotFound, ErrLastAdmin, or persistence failures
	*/
	Delete(context context.Context, normalized string) error

	/*
		List returns records in stable insertion order.

		Parameters:
		  - context: context.Context
		  - limit: int
		  - offset: int

		Returns:
		  - []*UserRecord: Page of records
		  - error: Retrieval failures
	*/
	List(context context.Context, limit, offset int) ([]*UserRecord, error)

	/*
		Count returns the total number of records.

		Parameters:
		  - context: context.Context

		Returns:
		  - int: Record count
		  - error: Retrieval failures
	*/
	Count(context context.Context) (int, error)

	/*
		CountAdmins returns the number of records holding the Admin role.

		Parameters:
		  - context: context.Context

		Returns:
		  - int: Admin count
		  - error: Retrieval failures
	*/
	CountAdmins(context context.Context) (int, error)

	/*
		UpdatePassword replaces only the record's password hash.

		Parameters:
		  - context: context.Context
		  - normalized: string
		  - newHash: string

		Returns:
		  - error: apperr.NotFound if the record vanished, or persistence failures
	*/
	UpdatePassword(context context.Context, normalized, newHash string) error
}
