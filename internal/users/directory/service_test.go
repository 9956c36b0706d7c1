// Copyright (c) 2026 Motorparc. All rights reserved.

package directory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/internal/users/directory"
)

func newTestService() *directory.Service {
	return directory.NewService(directory.NewMemoryUserRepository())
}

func mustCreate(t *testing.T, service *directory.Service, username string, role sec.Role) *directory.UserRecord {
	t.Helper()

	record, err := service.Create(context.Background(), directory.CreateInput{
		Username:  username,
		Password:  "initial-password",
		Role:      role,
		CreatedBy: "test",
	})
	require.NoError(t, err)
	return record
}

/*
TestService_Create verifies account creation, password hashing, and input
rejection.
*/
func TestService_Create(t *testing.T) {
	service := newTestService()

	record := mustCreate(t, service, "Admin1", sec.RoleAdmin)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Admin1", record.Username)
	assert.Equal(t, sec.RoleAdmin, record.Role)
	assert.Equal(t, "test", record.CreatedBy)
	assert.False(t, record.CreatedAt.IsZero())

	// The timestamp is persisted, not just returned.
	stored, err := service.Lookup(context.Background(), "Admin1")
	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, 5*time.Second)

	// The stored credential is a hash, never the plain text.
	assert.NotEqual(t, "initial-password", record.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("initial-password", record.PasswordHash))
}

/*
TestService_Create_InvalidInput verifies rejection of blank usernames and
unknown roles.
*/
func TestService_Create_InvalidInput(t *testing.T) {
	service := newTestService()

	_, err := service.Create(context.Background(), directory.CreateInput{
		Username: "   ",
		Password: "initial-password",
		Role:     sec.RoleStaff,
	})
	assert.ErrorIs(t, err, directory.ErrInvalidUsername)

	_, err = service.Create(context.Background(), directory.CreateInput{
		Username: "Staff1",
		Password: "initial-password",
		Role:     "Manager",
	})
	assert.ErrorIs(t, err, directory.ErrInvalidRole)
}

/*
TestService_Create_CaseInsensitiveUniqueness verifies that usernames
differing only in case collide.
*/
func TestService_Create_CaseInsensitiveUniqueness(t *testing.T) {
	service := newTestService()
	mustCreate(t, service, "Admin1", sec.RoleAdmin)

	_, err := service.Create(context.Background(), directory.CreateInput{
		Username: "admin1",
		Password: "another-password",
		Role:     sec.RoleStaff,
	})
	assert.ErrorIs(t, err, directory.ErrUsernameTaken)

	_, err = service.Create(context.Background(), directory.CreateInput{
		Username: "ADMIN1",
		Password: "another-password",
		Role:     sec.RoleStaff,
	})
	assert.ErrorIs(t, err, directory.ErrUsernameTaken)
}

/*
TestService_Create_Concurrent verifies that N concurrent creates of the
same username yield exactly one winner.
*/
func TestService_Create_Concurrent(t *testing.T) {
	service := newTestService()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = service.Create(context.Background(), directory.CreateInput{
				Username: "Racer",
				Password: "initial-password",
				Role:     sec.RoleStaff,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, directory.ErrUsernameTaken)
		}
	}
	assert.Equal(t, 1, winners)
}

/*
TestService_Delete verifies removal, the last-admin guard, and unknown
target handling.
*/
func TestService_Delete(t *testing.T) {
	t.Run("removes_staff", func(t *testing.T) {
		service := newTestService()
		mustCreate(t, service, "Admin1", sec.RoleAdmin)
		mustCreate(t, service, "Staff1", sec.RoleStaff)

		removed, err := service.Delete(context.Background(), "staff1", "Admin1")
		require.NoError(t, err)
		assert.Equal(t, "Staff1", removed.Username)

		_, err = service.Lookup(context.Background(), "Staff1")
		assert.ErrorIs(t, err, directory.ErrUserNotFound)
	})

	t.Run("refuses_last_admin", func(t *testing.T) {
		service := newTestService()
		mustCreate(t, service, "Admin1", sec.RoleAdmin)
		mustCreate(t, service, "Staff1", sec.RoleStaff)

		_, err := service.Delete(context.Background(), "Admin1", "Admin1")
		assert.ErrorIs(t, err, directory.ErrLastAdmin)

		// The account must still exist after the refused delete.
		_, err = service.Lookup(context.Background(), "Admin1")
		assert.NoError(t, err)
	})

	t.Run("allows_admin_removal_with_backup", func(t *testing.T) {
		service := newTestService()
		mustCreate(t, service, "Admin1", sec.RoleAdmin)
		mustCreate(t, service, "Admin2", sec.RoleAdmin)

		_, err := service.Delete(context.Background(), "Admin1", "Admin2")
		require.NoError(t, err)

		// Now Admin2 is the last one and becomes protected.
		_, err = service.Delete(context.Background(), "Admin2", "Admin2")
		assert.ErrorIs(t, err, directory.ErrLastAdmin)
	})

	t.Run("unknown_target", func(t *testing.T) {
		service := newTestService()
		_, err := service.Delete(context.Background(), "Ghost", "Admin1")
		assert.ErrorIs(t, err, directory.ErrUserNotFound)
	})
}

/*
TestService_Delete_ConcurrentAdmins verifies that concurrently deleting
the two remaining admins never removes both: exactly one delete wins and
one Admin always survives.
*/
func TestService_Delete_ConcurrentAdmins(t *testing.T) {
	service := newTestService()
	mustCreate(t, service, "Admin1", sec.RoleAdmin)
	mustCreate(t, service, "Admin2", sec.RoleAdmin)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, target := range []string{"Admin1", "Admin2"} {
		wg.Add(1)
		go func(slot int, username string) {
			defer wg.Done()
			_, errs[slot] = service.Delete(context.Background(), username, "test")
		}(i, target)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, directory.ErrLastAdmin)
		}
	}
	assert.Equal(t, 1, winners)

	_, total, err := service.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

/*
TestMemoryUserRepository_Delete_LastAdminGuard verifies that the
repository itself refuses to remove the final Admin, independent of the
service's write mutex. A store shared by several processes relies on
this contract.
*/
func TestMemoryUserRepository_Delete_LastAdminGuard(t *testing.T) {
	repository := directory.NewMemoryUserRepository()

	require.NoError(t, repository.Create(context.Background(), &directory.UserRecord{
		ID: "1", Username: "Admin1", Role: sec.RoleAdmin,
	}))
	require.NoError(t, repository.Create(context.Background(), &directory.UserRecord{
		ID: "2", Username: "Admin2", Role: sec.RoleAdmin,
	}))

	// With a backup admin the delete proceeds.
	require.NoError(t, repository.Delete(context.Background(), "admin1"))

	// The final admin is protected at the storage layer.
	err := repository.Delete(context.Background(), "admin2")
	assert.ErrorIs(t, err, directory.ErrLastAdmin)

	remaining, err := repository.FindByUsername(context.Background(), "admin2")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, remaining.Role)
}

/*
TestService_List verifies insertion-order pagination with a total count.
*/
func TestService_List(t *testing.T) {
	service := newTestService()
	mustCreate(t, service, "Admin1", sec.RoleAdmin)
	mustCreate(t, service, "Staff1", sec.RoleStaff)
	mustCreate(t, service, "Staff2", sec.RoleStaff)

	page, total, err := service.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Admin1", page[0].Username)
	assert.Equal(t, "Staff1", page[1].Username)

	rest, total, err := service.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rest, 1)
	assert.Equal(t, "Staff2", rest[0].Username)
}

/*
TestService_VerifyCurrentPassword verifies the truth table, including the
no-oracle behavior for unknown accounts.
*/
func TestService_VerifyCurrentPassword(t *testing.T) {
	service := newTestService()
	mustCreate(t, service, "Staff1", sec.RoleStaff)

	assert.True(t, service.VerifyCurrentPassword(context.Background(), "Staff1", "initial-password"))
	assert.True(t, service.VerifyCurrentPassword(context.Background(), "staff1", "initial-password"))
	assert.False(t, service.VerifyCurrentPassword(context.Background(), "Staff1", "wrong-password"))

	// Unknown user is indistinguishable from a wrong password.
	assert.False(t, service.VerifyCurrentPassword(context.Background(), "Ghost", "initial-password"))
}

/*
TestService_UpdatePassword verifies credential rotation and the vanished-
record edge case.
*/
func TestService_UpdatePassword(t *testing.T) {
	service := newTestService()
	mustCreate(t, service, "Staff1", sec.RoleStaff)

	err := service.UpdatePassword(context.Background(), "staff1", "rotated-password")
	require.NoError(t, err)

	assert.False(t, service.VerifyCurrentPassword(context.Background(), "Staff1", "initial-password"))
	assert.True(t, service.VerifyCurrentPassword(context.Background(), "Staff1", "rotated-password"))

	err = service.UpdatePassword(context.Background(), "Ghost", "rotated-password")
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}

/*
TestNormalizeUsername verifies trimming and Unicode case folding.
*/
func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "admin1", directory.NormalizeUsername("  Admin1  "))
	assert.Equal(t, directory.NormalizeUsername("ADMIN1"), directory.NormalizeUsername("admin1"))
	assert.Equal(t, "", directory.NormalizeUsername("   "))
}
