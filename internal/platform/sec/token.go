// Copyright (c) 2026 Motorparc. All rights reserved.

// Package sec provides cryptographic primitives and session token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, Token Signing,
// Fingerprinting) from the domain logic. It acts as an Infrastructure service
// injected into the Application layer via the [Guard].
package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CurrentSchemaVersion tags the session payload shape. Bumping it
// invalidates every outstanding token at once — the only global
// invalidation mechanism in the stateless design.
const CurrentSchemaVersion = 1

// tokenSeparator joins the payload and signature segments of a token.
const tokenSeparator = "."

// # Authentication Failures

var (
	// ErrInvalidToken covers malformed encoding, bad signatures, bad payload
	// shape, and unsupported schema versions. The cases are deliberately not
	// distinguishable to callers to avoid oracle leakage.
	ErrInvalidToken = errors.New("sec: invalid session token")

	// ErrExpired marks a token whose age exceeds the session lifetime.
	ErrExpired = errors.New("sec: session expired")

	// ErrFingerprintMismatch marks a token replayed from a different client.
	ErrFingerprintMismatch = errors.New("sec: session fingerprint mismatch")
)

// # Session Payload

// SessionPayload is the authenticated identity carried inside a token.
//
// # Why self-contained?
//
// By embedding the username and role directly inside the signed token, the
// request gate can reconstruct the active user context WITHOUT querying the
// database on every single API request. Contents are tamper-evident, not
// secret — no credential material is ever placed here.
type SessionPayload struct {
	// Username is case-preserved for display; lookups fold the case.
	Username string `json:"username"`
	// Role is the authorization tier asserted at issuance.
	Role Role `json:"role"`
	// IssuedAt is the creation time in milliseconds since epoch. Immutable.
	IssuedAt int64 `json:"issued_at"`
	// SchemaVersion rejects tokens minted under an incompatible payload shape.
	SchemaVersion int `json:"schema_version"`
	// Fingerprint binds the token to the issuing client (see [FingerprintBinder]).
	Fingerprint string `json:"fingerprint,omitempty"`
}

// IssuedTime converts the millisecond timestamp into a [time.Time].
func (p *SessionPayload) IssuedTime() time.Time {
	return time.UnixMilli(p.IssuedAt)
}

// valid reports whether the decoded payload shape is acceptable.
// Shape violations are invalid regardless of signature validity.
func (p *SessionPayload) valid() bool {
	if p.Username == "" {
		return false
	}
	if !p.Role.Valid() {
		return false
	}
	if p.SchemaVersion != CurrentSchemaVersion {
		return false
	}
	return p.IssuedAt > 0
}

// # Token Codec

// TokenCodec encodes session payloads into signed, URL-safe tokens and
// decodes them back, verifying integrity along the way.
//
// Wire form: base64url(payload JSON) + "." + base64url(HMAC-SHA256).
// The signature covers the exact encoded payload bytes, so any mutation of
// the payload segment without re-signing fails verification.
//
// # Concurrency
//
// A TokenCodec is a pure function over its immutable secret and may be
// shared by any number of request handlers without synchronization.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a codec keyed with the process signing secret.
//
// An absent or empty secret is a configuration error, fatal at startup —
// never a per-request condition.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("sec: session signing secret is not configured")
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Encode serializes the payload deterministically (struct field order),
// signs the encoded bytes, and joins the two base64url segments.
func (codec *TokenCodec) Encode(payload *SessionPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("sec: failed to serialize session payload")
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(raw)
	signature := codec.sign([]byte(encodedPayload))
	encodedSignature := base64.RawURLEncoding.EncodeToString(signature)

	return encodedPayload + tokenSeparator + encodedSignature, nil
}

// Decode verifies and deserializes a token.
//
// # Failure Modes
//
// Wrong segment count, malformed base64, signature mismatch, malformed JSON,
// and payload shape violations all return [ErrInvalidToken]. The comparison
// against the provided signature runs in constant time (timing-attack
// resistance is a hard requirement here, not an optimization).
func (codec *TokenCodec) Decode(token string) (*SessionPayload, error) {
	segments := strings.Split(token, tokenSeparator)
	if len(segments) != 2 {
		return nil, ErrInvalidToken
	}

	providedSignature, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, ErrInvalidToken
	}

	// Recompute over the payload segment exactly as received.
	expectedSignature := codec.sign([]byte(segments[0]))
	if !hmac.Equal(providedSignature, expectedSignature) {
		return nil, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return nil, ErrInvalidToken
	}

	payload := &SessionPayload{}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, ErrInvalidToken
	}

	if !payload.valid() {
		return nil, ErrInvalidToken
	}

	return payload, nil
}

// sign computes the keyed HMAC-SHA256 over the encoded payload bytes.
func (codec *TokenCodec) sign(encodedPayload []byte) []byte {
	mac := hmac.New(sha256.New, codec.secret)
	mac.Write(encodedPayload)
	return mac.Sum(nil)
}
