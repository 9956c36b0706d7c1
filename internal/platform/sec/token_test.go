// Copyright (c) 2026 Motorparc. All rights reserved.

package sec_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorparc/motorparc/internal/platform/sec"
)

const testSecret = "unit-test-signing-secret"

func newTestPayload() *sec.SessionPayload {
	return &sec.SessionPayload{
		Username:      "Admin1",
		Role:          sec.RoleAdmin,
		IssuedAt:      time.Now().UnixMilli(),
		SchemaVersion: sec.CurrentSchemaVersion,
	}
}

/*
TestTokenCodec_RoundTrip verifies that an encoded token decodes back to the
exact same payload.
*/
func TestTokenCodec_RoundTrip(t *testing.T) {
	codec, err := sec.NewTokenCodec(testSecret)
	require.NoError(t, err)

	payload := newTestPayload()
	payload.Fingerprint = "fp-opaque-value"

	token, err := codec.Encode(payload)
	require.NoError(t, err)
	assert.Equal(t, 2, len(strings.Split(token, ".")))

	decoded, err := codec.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, payload.Username, decoded.Username)
	assert.Equal(t, payload.Role, decoded.Role)
	assert.Equal(t, payload.IssuedAt, decoded.IssuedAt)
	assert.Equal(t, payload.SchemaVersion, decoded.SchemaVersion)
	assert.Equal(t, payload.Fingerprint, decoded.Fingerprint)
}

/*
TestTokenCodec_EmptySecret verifies that constructing a codec without a
signing secret fails at startup, not at request time.
*/
func TestTokenCodec_EmptySecret(t *testing.T) {
	codec, err := sec.NewTokenCodec("")
	assert.Error(t, err)
	assert.Nil(t, codec)
}

/*
TestTokenCodec_TamperedPayload verifies that any mutation of the payload
segment invalidates the signature.
*/
func TestTokenCodec_TamperedPayload(t *testing.T) {
	codec, err := sec.NewTokenCodec(testSecret)
	require.NoError(t, err)

	token, err := codec.Encode(newTestPayload())
	require.NoError(t, err)

	// Flip one character of the payload segment.
	mutated := []byte(token)
	if mutated[0] == 'e' {
		mutated[0] = 'f'
	} else {
		mutated[0] = 'e'
	}

	decoded, err := codec.Decode(string(mutated))
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
	assert.Nil(t, decoded)
}

/*
TestTokenCodec_TamperedSignature verifies that mutating the signature
segment invalidates the token.
*/
func TestTokenCodec_TamperedSignature(t *testing.T) {
	codec, err := sec.NewTokenCodec(testSecret)
	require.NoError(t, err)

	token, err := codec.Encode(newTestPayload())
	require.NoError(t, err)

	mutated := []byte(token)
	last := len(mutated) - 1
	if mutated[last] == 'A' {
		mutated[last] = 'B'
	} else {
		mutated[last] = 'A'
	}

	_, err = codec.Decode(string(mutated))
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenCodec_WrongKey verifies that a token signed under a different
secret is rejected.
*/
func TestTokenCodec_WrongKey(t *testing.T) {
	codecA, err := sec.NewTokenCodec("secret-a")
	require.NoError(t, err)

	codecB, err := sec.NewTokenCodec("secret-b")
	require.NoError(t, err)

	token, err := codecA.Encode(newTestPayload())
	require.NoError(t, err)

	_, err = codecB.Decode(token)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestTokenCodec_Malformed verifies that structurally broken tokens collapse
to the single invalid-token failure.
*/
func TestTokenCodec_Malformed(t *testing.T) {
	codec, err := sec.NewTokenCodec(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one_segment", "abcdef"},
		{"three_segments", "a.b.c"},
		{"bad_base64_signature", "eyJhIjoxfQ.!!!"},
		{"bad_base64_payload", "!!!.c2ln"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			assert.ErrorIs(t, err, sec.ErrInvalidToken)
		})
	}
}

/*
TestTokenCodec_RejectsBadShape verifies that a correctly signed token is
still rejected when its payload violates the expected shape.
*/
func TestTokenCodec_RejectsBadShape(t *testing.T) {
	codec, err := sec.NewTokenCodec(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutator func(p *sec.SessionPayload)
	}{
		{"empty_username", func(p *sec.SessionPayload) { p.Username = "" }},
		{"unknown_role", func(p *sec.SessionPayload) { p.Role = "Manager" }},
		{"wrong_schema_version", func(p *sec.SessionPayload) { p.SchemaVersion = sec.CurrentSchemaVersion + 1 }},
		{"zero_issued_at", func(p *sec.SessionPayload) { p.IssuedAt = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := newTestPayload()
			tt.mutator(payload)

			// Encode signs whatever it is given; shape is enforced on decode.
			token, err := codec.Encode(payload)
			require.NoError(t, err)

			_, err = codec.Decode(token)
			assert.ErrorIs(t, err, sec.ErrInvalidToken)
		})
	}
}
