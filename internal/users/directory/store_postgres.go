// Copyright (c) 2026 Motorparc. All rights reserved.

// PostgreSQL implementation of the directory repository.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, SQLSTATE 23505) are mapped to
// domain-friendly [apperr.AppError] values via dberr to avoid leaking
// storage implementation details.

package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorparc/motorparc/internal/platform/dberr"
	"github.com/motorparc/motorparc/internal/platform/sec"
)

// # Postgres Repository

// PostgresUserRepository implements the [UserRepository] interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL implementation of the repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
Create persists a new record into the users.account table.

Description: The usernamefold column carries a UNIQUE constraint, so a
concurrent duplicate insert surfaces as ErrUsernameTaken even across
multiple API instances.

Parameters:
  - context: context.Context
  - record: *UserRecord

Returns:
  - error: ErrUsernameTaken on collision, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, record *UserRecord) error {
	const query = `
		INSERT INTO users.account (
			id, username, usernamefold, passwordhash, role, createdby, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		record.ID,
		record.Username,
		NormalizeUsername(record.Username),
		record.PasswordHash,
		record.Role,
		record.CreatedBy,
		record.CreatedAt,
	)

	return dberr.Wrap(err, ErrUsernameTaken)
}

/*
FindByUsername retrieves a record by its folded username.

Parameters:
  - context: context.Context
  - normalized: string

Returns:
  - *UserRecord: Hydrated entity
  - error: ErrUserNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByUsername(context context.Context, normalized string) (*UserRecord, error) {
	const query = `
		SELECT id, username, passwordhash, role, createdby, createdat
		FROM users.account
		WHERE usernamefold = $1`

	record := &UserRecord{}
	err := repository.pool.QueryRow(context, query, normalized).Scan(
		&record.ID,
		&record.Username,
		&record.PasswordHash,
		&record.Role,
		&record.CreatedBy,
		&record.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres_directory_find_failed: %w", err)
	}

	return record, nil
}

// accountDeleteLockID is the advisory lock key serializing directory
// deletes across all API instances, so the admin re-count below always
// runs against a settled record set.
const accountDeleteLockID = 941203

/*
Delete removes a record by its folded username.

Description: Runs inside a transaction holding an advisory lock. The
last-admin check is re-executed here so that two instances concurrently
deleting the two remaining admins cannot both pass the count and leave the
directory without an Admin. The service-level check remains the fast path;
this one is the authority under contention.

Parameters:
  - context: context.Context
  - normalized: string

Returns:
  - error: ErrUserNotFound, ErrLastAdmin, or execution errors
*/
func (repository *PostgresUserRepository) Delete(context context.Context, normalized string) error {
	transaction, err := repository.pool.BeginTx(context, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres_directory_delete_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	// Serialize deletes cluster-wide. Released automatically at commit
	// or rollback.
	if _, err := transaction.Exec(context, "SELECT pg_advisory_xact_lock($1)", accountDeleteLockID); err != nil {
		return fmt.Errorf("postgres_directory_delete_lock_failed: %w", err)
	}

	var role sec.Role
	err = transaction.QueryRow(context,
		"SELECT role FROM users.account WHERE usernamefold = $1", normalized).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("postgres_directory_delete_find_failed: %w", err)
	}

	if role == sec.RoleAdmin {
		var adminCount int
		err = transaction.QueryRow(context,
			"SELECT COUNT(*) FROM users.account WHERE role = $1", sec.RoleAdmin).Scan(&adminCount)
		if err != nil {
			return fmt.Errorf("postgres_directory_delete_count_failed: %w", err)
		}
		if adminCount <= 1 {
			return ErrLastAdmin
		}
	}

	tag, err := transaction.Exec(context, "DELETE FROM users.account WHERE usernamefold = $1", normalized)
	if err != nil {
		return fmt.Errorf("postgres_directory_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_directory_delete_commit_failed: %w", err)
	}

	return nil
}

/*
List returns a page of records in stable insertion order.

Description: Ordering by (createdat, id) — the ID is a UUIDv7, so the pair
is a total insertion order even for records created in the same millisecond.

Parameters:
  - context: context.Context
  - limit: int
  - offset: int

Returns:
  - []*UserRecord: Page of records
  - error: Retrieval failures
*/
func (repository *PostgresUserRepository) List(context context.Context, limit, offset int) ([]*UserRecord, error) {
	const query = `
		SELECT id, username, passwordhash, role, createdby, createdat
		FROM users.account
		ORDER BY createdat, id
		LIMIT $1 OFFSET $2`

	rows, err := repository.pool.Query(context, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres_directory_list_failed: %w", err)
	}
	defer rows.Close()

	records := make([]*UserRecord, 0, limit)
	for rows.Next() {
		record := &UserRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.Username,
			&record.PasswordHash,
			&record.Role,
			&record.CreatedBy,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_directory_scan_failed: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_directory_rows_failed: %w", err)
	}

	return records, nil
}

/*
Count returns the total number of directory records.
*/
func (repository *PostgresUserRepository) Count(context context.Context) (int, error) {
	const query = "SELECT COUNT(*) FROM users.account"

	var count int
	if err := repository.pool.QueryRow(context, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_directory_count_failed: %w", err)
	}

	return count, nil
}

/*
CountAdmins returns the number of records holding the Admin role.
*/
func (repository *PostgresUserRepository) CountAdmins(context context.Context) (int, error) {
	const query = "SELECT COUNT(*) FROM users.account WHERE role = $1"

	var count int
	if err := repository.pool.QueryRow(context, query, sec.RoleAdmin).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_directory_admin_count_failed: %w", err)
	}

	return count, nil
}

/*
UpdatePassword replaces only the password hash for a record.

Parameters:
  - context: context.Context
  - normalized: string
  - newHash: string

Returns:
  - error: ErrUserNotFound if the record vanished, or execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, normalized, newHash string) error {
	const query = "UPDATE users.account SET passwordhash = $2 WHERE usernamefold = $1"

	tag, err := repository.pool.Exec(context, query, normalized, newHash)
	if err != nil {
		return fmt.Errorf("postgres_directory_update_password_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
