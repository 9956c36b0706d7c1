// Copyright (c) 2026 Motorparc. All rights reserved.

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorparc/motorparc/internal/platform/sec"
)

const testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) Showroom/1.0"

func newTestBinder(t *testing.T) *sec.FingerprintBinder {
	t.Helper()
	binder, err := sec.NewFingerprintBinder(testSecret)
	require.NoError(t, err)
	return binder
}

/*
TestFingerprintBinder_Deterministic verifies that equal inputs always
produce the same opaque fingerprint.
*/
func TestFingerprintBinder_Deterministic(t *testing.T) {
	binder := newTestBinder(t)

	first := binder.Fingerprint("203.0.113.7", testUserAgent)
	second := binder.Fingerprint("203.0.113.7", testUserAgent)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.True(t, binder.Match(first, second))
}

/*
TestFingerprintBinder_DivergentClients verifies that changing either
component produces a different fingerprint.
*/
func TestFingerprintBinder_DivergentClients(t *testing.T) {
	binder := newTestBinder(t)
	base := binder.Fingerprint("203.0.113.7", testUserAgent)

	otherIP := binder.Fingerprint("203.0.113.8", testUserAgent)
	assert.NotEqual(t, base, otherIP)
	assert.False(t, binder.Match(base, otherIP))

	otherUA := binder.Fingerprint("203.0.113.7", "curl/8.0")
	assert.NotEqual(t, base, otherUA)
}

/*
TestFingerprintBinder_IPNormalization verifies that port suffixes and
forwarded lists reduce to the bare client address before hashing.
*/
func TestFingerprintBinder_IPNormalization(t *testing.T) {
	binder := newTestBinder(t)
	bare := binder.Fingerprint("203.0.113.7", testUserAgent)

	tests := []struct {
		name string
		ip   string
	}{
		{"with_port", "203.0.113.7:51423"},
		{"surrounding_whitespace", "  203.0.113.7  "},
		{"forwarded_list", "203.0.113.7, 10.0.0.1, 172.16.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, bare, binder.Fingerprint(tt.ip, testUserAgent))
		})
	}
}

/*
TestFingerprintBinder_UserAgentCap verifies that oversized user-agents are
truncated to a fixed prefix before hashing.
*/
func TestFingerprintBinder_UserAgentCap(t *testing.T) {
	binder := newTestBinder(t)

	oversized := strings.Repeat("a", 300)
	capped := oversized[:256]

	assert.Equal(t,
		binder.Fingerprint("203.0.113.7", capped),
		binder.Fingerprint("203.0.113.7", oversized),
	)
}

/*
TestFingerprintBinder_EmptyComponents verifies that missing IP or
user-agent degrades to a stable value instead of failing.
*/
func TestFingerprintBinder_EmptyComponents(t *testing.T) {
	binder := newTestBinder(t)

	first := binder.Fingerprint("", "")
	second := binder.Fingerprint("", "")

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)

	// The delimiter keeps ("ab","") and ("a","b") apart.
	assert.NotEqual(t,
		binder.Fingerprint("ab", ""),
		binder.Fingerprint("a", "b"),
	)
}

/*
TestFingerprintBinder_EmptySecret verifies the startup guard against a
missing fingerprint key.
*/
func TestFingerprintBinder_EmptySecret(t *testing.T) {
	binder, err := sec.NewFingerprintBinder("")
	assert.Error(t, err)
	assert.Nil(t, binder)
}

/*
TestFingerprintBinder_MatchLengthGuard verifies that fingerprints of
different lengths never match.
*/
func TestFingerprintBinder_MatchLengthGuard(t *testing.T) {
	binder := newTestBinder(t)
	fp := binder.Fingerprint("203.0.113.7", testUserAgent)

	assert.False(t, binder.Match(fp, fp[:len(fp)-1]))
	assert.False(t, binder.Match("", fp))
}
