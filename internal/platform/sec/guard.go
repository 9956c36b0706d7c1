// Copyright (c) 2026 Motorparc. All rights reserved.

package sec

import (
	"context"
	"log/slog"
	"time"
)

// MaxSessionAge is the fixed lifetime of a session token.
const MaxSessionAge = 8 * time.Hour

// # Fingerprint Policy

// FingerprintPolicy controls how a fingerprint divergence is handled.
//
// # Trade-off
//
// Rejecting on mismatch hard-blocks token replay from another client, but
// also locks out legitimate users whose IP changes mid-session (mobile
// networks). The default is log-only: divergence is recorded server-side
// for anomaly tracking without denying the request.
type FingerprintPolicy string

const (
	// FingerprintLogOnly records mismatches but allows the request.
	FingerprintLogOnly FingerprintPolicy = "log"

	// FingerprintReject denies requests whose fingerprint diverges.
	FingerprintReject FingerprintPolicy = "reject"
)

// ParseFingerprintPolicy maps a raw config string onto a policy,
// falling back to log-only for unknown values.
func ParseFingerprintPolicy(raw string) FingerprintPolicy {
	if FingerprintPolicy(raw) == FingerprintReject {
		return FingerprintReject
	}
	return FingerprintLogOnly
}

// # Anomaly Tracking

// AnomalyTracker deduplicates fingerprint-mismatch reports so a roaming
// client does not flood the logs on every request.
type AnomalyTracker interface {
	// ShouldReport reports whether a mismatch for this token fingerprint
	// should be surfaced, suppressing repeats within a rolling window.
	ShouldReport(ctx context.Context, fingerprint string) bool
}

// # Access Guard

// Guard composes the token codec, the fingerprint binder, the clock, and
// the fingerprint policy into a single "authenticate this request"
// operation, with role checks layered on top.
//
// # Concurrency
//
// Guard holds only immutable state after construction and is safe for
// concurrent use from any number of request handlers.
type Guard struct {
	codec     *TokenCodec
	binder    *FingerprintBinder
	policy    FingerprintPolicy
	anomalies AnomalyTracker
	logger    *slog.Logger

	// now is injectable so expiry boundaries are testable with a fake clock.
	now func() time.Time
}

// GuardOption customizes optional Guard collaborators.
type GuardOption func(*Guard)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// WithAnomalyTracker wires a deduplicating tracker for mismatch reports.
func WithAnomalyTracker(tracker AnomalyTracker) GuardOption {
	return func(g *Guard) { g.anomalies = tracker }
}

// NewGuard builds a Guard keyed with the process signing secret.
//
// An empty secret is a fatal configuration error surfaced here, once, at
// startup.
func NewGuard(secret string, policy FingerprintPolicy, logger *slog.Logger, options ...GuardOption) (*Guard, error) {
	codec, err := NewTokenCodec(secret)
	if err != nil {
		return nil, err
	}

	binder, err := NewFingerprintBinder(secret)
	if err != nil {
		return nil, err
	}

	guard := &Guard{
		codec:  codec,
		binder: binder,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}

	for _, option := range options {
		option(guard)
	}

	return guard, nil
}

// IssueSession builds a signed session token for an already-verified
// identity.
//
// # Contract
//
// Pure function of inputs plus the clock: no side effects beyond returning
// the token. The caller owns transport delivery (cookie/header policy) and
// is responsible for having corroborated the role against the user
// directory at the moment of issuance — sessions are self-contained and
// not re-validated against the store afterwards.
func (guard *Guard) IssueSession(username string, role Role, ip, userAgent string) (string, error) {
	payload := &SessionPayload{
		Username:      username,
		Role:          role,
		IssuedAt:      guard.now().UnixMilli(),
		SchemaVersion: CurrentSchemaVersion,
		Fingerprint:   guard.binder.Fingerprint(ip, userAgent),
	}

	return guard.codec.Encode(payload)
}

// Authenticate verifies a request's token against signature, expiry, and
// client fingerprint.
//
// # Failure Taxonomy
//
//   - [ErrInvalidToken]: decode/signature/shape failure.
//   - [ErrExpired]: token older than [MaxSessionAge].
//   - [ErrFingerprintMismatch]: divergent client, only under the reject policy.
//
// All three surface to the end user as a generic "not authenticated";
// server-side logs keep the distinction for anomaly tracking.
func (guard *Guard) Authenticate(ctx context.Context, token, ip, userAgent string) (*SessionPayload, error) {
	payload, err := guard.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if guard.now().Sub(payload.IssuedTime()) > MaxSessionAge {
		return nil, ErrExpired
	}

	currentFingerprint := guard.binder.Fingerprint(ip, userAgent)
	if payload.Fingerprint != "" && !guard.binder.Match(payload.Fingerprint, currentFingerprint) {
		guard.reportMismatch(ctx, payload)

		if guard.policy == FingerprintReject {
			return nil, ErrFingerprintMismatch
		}
	}

	return payload, nil
}

// Authorize reports whether the session's role satisfies the required tier.
//
// Flat two-tier model: Admin satisfies everything, Staff satisfies
// Staff-level checks only. No hierarchy beyond that.
func (guard *Guard) Authorize(payload *SessionPayload, required Role) bool {
	if payload == nil {
		return false
	}
	return payload.Role.AtLeast(required)
}

// reportMismatch logs a fingerprint divergence, deduplicated through the
// anomaly tracker when one is wired.
func (guard *Guard) reportMismatch(ctx context.Context, payload *SessionPayload) {
	if guard.anomalies != nil && !guard.anomalies.ShouldReport(ctx, payload.Fingerprint) {
		return
	}

	guard.logger.WarnContext(ctx, "session_fingerprint_mismatch",
		slog.String("username", payload.Username),
		slog.String("policy", string(guard.policy)),
		slog.Int64("issued_at", payload.IssuedAt),
	)
}
