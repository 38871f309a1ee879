package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecraft/backoffice/internal/shared"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("s3cret", "https://id.storecraft.test", "backoffice")
	raw, err := v.Issue(shared.Identity{UID: "uid-1", Email: "a@shop.test"}, time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, shared.Identity{UID: "uid-1", Email: "a@shop.test"}, id)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("s3cret", "https://id.storecraft.test", "backoffice")

	wrongKey, err := NewVerifier("other", "https://id.storecraft.test", "backoffice").
		Issue(shared.Identity{UID: "uid-1"}, time.Minute)
	require.NoError(t, err)
	expired, err := v.Issue(shared.Identity{UID: "uid-1"}, -time.Hour)
	require.NoError(t, err)
	wrongAudience, err := NewVerifier("s3cret", "https://id.storecraft.test", "storefront").
		Issue(shared.Identity{UID: "uid-1"}, time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewVerifier("s3cret", "https://evil.test", "backoffice").
		Issue(shared.Identity{UID: "uid-1"}, time.Minute)
	require.NoError(t, err)
	noSubject, err := v.Issue(shared.Identity{Email: "a@shop.test"}, time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong key":      wrongKey,
		"expired":        expired,
		"wrong audience": wrongAudience,
		"wrong issuer":   wrongIssuer,
		"no subject":     noSubject,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifierWithoutIssuerOrAudience(t *testing.T) {
	v := NewVerifier("s3cret", "", "")
	raw, err := NewVerifier("s3cret", "anyone", "anything").Issue(shared.Identity{UID: "uid-9"}, time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "uid-9", id.UID)
}
