// Copyright (c) 2026 Motorparc. All rights reserved.

package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net"
	"strings"
)

// # Client Fingerprinting

const (
	// maxUserAgentLength caps the UA component to prevent pathological inputs.
	maxUserAgentLength = 256

	// fingerprintDelimiter separates the normalized components before hashing,
	// so ("ab","c") and ("a","bc") never collide.
	fingerprintDelimiter = "\x1f"
)

// FingerprintBinder derives a stable fingerprint from client IP and
// user-agent, used as a heuristic signal to detect token replay from a
// different client.
//
// # Contract
//
// The transform is keyed and one-way: a leaked token does not reveal the raw
// IP/UA pair. Equal normalized inputs always produce equal output. NAT'd
// users sharing an IP and similar UA may collide — an accepted false
// negative, not a security failure, since the token signature still
// prevents forgery.
//
// # Concurrency
//
// Stateless over an immutable key; safe for arbitrary concurrent use.
type FingerprintBinder struct {
	key []byte
}

// NewFingerprintBinder creates a binder keyed with the process secret.
func NewFingerprintBinder(secret string) (*FingerprintBinder, error) {
	if secret == "" {
		return nil, errors.New("sec: fingerprint key is not configured")
	}
	return &FingerprintBinder{key: []byte(secret)}, nil
}

// Fingerprint computes the opaque fingerprint for a request.
//
// Missing IP or user-agent degrades to an empty component rather than an
// error — availability over strict binding for clients that omit headers.
func (binder *FingerprintBinder) Fingerprint(ip, userAgent string) string {
	normalized := normalizeIP(ip) + fingerprintDelimiter + normalizeUserAgent(userAgent)

	mac := hmac.New(sha256.New, binder.key)
	mac.Write([]byte(normalized))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Match compares two fingerprints in constant time.
func (binder *FingerprintBinder) Match(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// normalizeIP strips an attached port and surrounding whitespace.
//
// Proxy-forwarded values are expected to already be reduced to the first
// hop by the middleware layer; a stray comma-separated list is still
// reduced here as a safety net.
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	if comma := strings.IndexByte(ip, ','); comma >= 0 {
		ip = strings.TrimSpace(ip[:comma])
	}

	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}

	return ip
}

// normalizeUserAgent trims and caps the user-agent string.
func normalizeUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if len(userAgent) > maxUserAgentLength {
		userAgent = userAgent[:maxUserAgentLength]
	}
	return userAgent
}
