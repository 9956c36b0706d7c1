// Copyright (c) 2026 Motorparc. All rights reserved.

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorparc/motorparc/internal/platform/sec"
	"github.com/motorparc/motorparc/internal/users/auth"
	"github.com/motorparc/motorparc/internal/users/directory"
)

// fakeLimiter records limiter traffic and can simulate a throttled account.
type fakeLimiter struct {
	throttled bool
	failures  int
	resets    int
}

func (limiter *fakeLimiter) Allow(_ context.Context, _ string) error {
	if limiter.throttled {
		return auth.ErrLoginThrottled
	}
	return nil
}

func (limiter *fakeLimiter) RecordFailure(_ context.Context, _ string) { limiter.failures++ }
func (limiter *fakeLimiter) Reset(_ context.Context, _ string)         { limiter.resets++ }

type authFixture struct {
	service   *auth.Service
	directory *directory.Service
	guard     *sec.Guard
	limiter   *fakeLimiter
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard, err := sec.NewGuard("unit-test-signing-secret", sec.FingerprintLogOnly, logger)
	require.NoError(t, err)

	users := directory.NewService(directory.NewMemoryUserRepository())
	_, err = users.Create(context.Background(), directory.CreateInput{
		Username:  "Admin1",
		Password:  "initial-password",
		Role:      sec.RoleAdmin,
		CreatedBy: "test",
	})
	require.NoError(t, err)

	limiter := &fakeLimiter{}
	return &authFixture{
		service:   auth.NewService(users, guard, limiter),
		directory: users,
		guard:     guard,
		limiter:   limiter,
	}
}

/*
TestService_Login verifies that valid credentials yield a verifiable
session token carrying the directory role.
*/
func TestService_Login(t *testing.T) {
	fixture := newAuthFixture(t)

	result, err := fixture.service.Login(context.Background(), auth.LoginInput{
		Username:  "admin1",
		Password:  "initial-password",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Admin1", result.User.Username)
	assert.WithinDuration(t, time.Now().Add(sec.MaxSessionAge), result.ExpiresAt, 5*time.Second)
	assert.Equal(t, 1, fixture.limiter.resets)
	assert.Equal(t, 0, fixture.limiter.failures)

	// The issued token authenticates from the same client.
	session, err := fixture.guard.Authenticate(context.Background(), result.Token, "203.0.113.7", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, "Admin1", session.Username)
	assert.Equal(t, sec.RoleAdmin, session.Role)
}

/*
TestService_Login_BadCredentials verifies that wrong passwords and unknown
accounts share one indistinguishable failure, each counted against the
limiter.
*/
func TestService_Login_BadCredentials(t *testing.T) {
	fixture := newAuthFixture(t)

	_, err := fixture.service.Login(context.Background(), auth.LoginInput{
		Username: "Admin1",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	_, err = fixture.service.Login(context.Background(), auth.LoginInput{
		Username: "Ghost",
		Password: "initial-password",
	})
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	assert.Equal(t, 2, fixture.limiter.failures)
	assert.Equal(t, 0, fixture.limiter.resets)
}

/*
TestService_Login_Throttled verifies that a throttled account is refused
before any credential check.
*/
func TestService_Login_Throttled(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.limiter.throttled = true

	_, err := fixture.service.Login(context.Background(), auth.LoginInput{
		Username: "Admin1",
		Password: "initial-password",
	})
	assert.ErrorIs(t, err, auth.ErrLoginThrottled)
	assert.Equal(t, 0, fixture.limiter.failures)
}

/*
TestService_ChangePassword verifies the verified password change flow.
*/
func TestService_ChangePassword(t *testing.T) {
	fixture := newAuthFixture(t)

	// 1. Wrong current password is refused.
	err := fixture.service.ChangePassword(context.Background(), "Admin1", "wrong-password", "rotated-password")
	assert.ErrorIs(t, err, auth.ErrWrongCurrentPassword)
	assert.True(t, fixture.directory.VerifyCurrentPassword(context.Background(), "Admin1", "initial-password"))

	// 2. Correct current password rotates the credential.
	err = fixture.service.ChangePassword(context.Background(), "Admin1", "initial-password", "rotated-password")
	require.NoError(t, err)

	assert.False(t, fixture.directory.VerifyCurrentPassword(context.Background(), "Admin1", "initial-password"))
	assert.True(t, fixture.directory.VerifyCurrentPassword(context.Background(), "Admin1", "rotated-password"))

	// 3. The new credential logs in.
	_, err = fixture.service.Login(context.Background(), auth.LoginInput{
		Username: "Admin1",
		Password: "rotated-password",
	})
	assert.NoError(t, err)
}
