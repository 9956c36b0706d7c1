// Copyright (c) 2026 Motorparc. All rights reserved.

package auth

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/motorparc/motorparc/internal/platform/constants"
	"github.com/motorparc/motorparc/internal/platform/ctxutil"
	"github.com/motorparc/motorparc/internal/users/directory"
)

// # Failed-Login Throttling

// RedisAttemptLimiter implements [AttemptLimiter] on Redis TTL counters.
//
// # Availability
//
// The limiter fails open: if Redis is unreachable, logins proceed without
// throttling. Authentication availability outranks brute-force slowdown,
// and bcrypt already rate-limits guessing by cost.
type RedisAttemptLimiter struct {
	client *redis.Client
}

// NewRedisAttemptLimiter constructs a limiter over the shared Redis client.
func NewRedisAttemptLimiter(client *redis.Client) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{client: client}
}

// attemptKey folds the username so "Admin1" and "admin1" share one budget.
func attemptKey(username string) string {
	return constants.RedisPrefixLoginAttempts + directory.NormalizeUsername(username)
}

// Allow returns ErrLoginThrottled once the account's failure budget is spent.
func (limiter *RedisAttemptLimiter) Allow(ctx context.Context, username string) error {
	failures, err := limiter.client.Get(ctx, attemptKey(username)).Int()
	if err != nil {
		if err != redis.Nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "login_limiter_unavailable",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	if failures >= constants.MaxLoginAttempts {
		return ErrLoginThrottled
	}

	return nil
}

// RecordFailure increments the counter and arms the rolling window on the
// first failure.
func (limiter *RedisAttemptLimiter) RecordFailure(ctx context.Context, username string) {
	key := attemptKey(username)

	failures, err := limiter.client.Incr(ctx, key).Result()
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "login_limiter_unavailable",
			slog.String("error", err.Error()),
		)
		return
	}

	if failures == 1 {
		limiter.client.Expire(ctx, key, constants.LoginAttemptWindow)
	}
}

// Reset clears the counter after a successful login.
func (limiter *RedisAttemptLimiter) Reset(ctx context.Context, username string) {
	limiter.client.Del(ctx, attemptKey(username))
}

// # Fingerprint Anomaly Deduplication

// RedisAnomalyTracker implements [sec.AnomalyTracker] with SetNX windows so
// a roaming client produces one mismatch report per window, not one per
// request.
type RedisAnomalyTracker struct {
	client *redis.Client
}

// NewRedisAnomalyTracker constructs a tracker over the shared Redis client.
func NewRedisAnomalyTracker(client *redis.Client) *RedisAnomalyTracker {
	return &RedisAnomalyTracker{client: client}
}

// ShouldReport claims the dedup slot for this fingerprint. The first caller
// in a window reports; repeats are suppressed until the key expires. A Redis
// failure reports rather than silently dropping the anomaly.
func (tracker *RedisAnomalyTracker) ShouldReport(ctx context.Context, fingerprint string) bool {
	claimed, err := tracker.client.SetNX(ctx,
		constants.RedisPrefixFingerprintAnomaly+fingerprint,
		1,
		constants.FingerprintAnomalyWindow,
	).Result()
	if err != nil {
		return true
	}

	return claimed
}
