package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-test"

func TestResolver_RoundTrip(t *testing.T) {
	r := NewResolver(testSecret, time.Hour)

	token, err := r.Issue("user-42")
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestResolver_Rejects(t *testing.T) {
	r := NewResolver(testSecret, time.Hour)
	other := NewResolver("another-secret-entirely", time.Hour)

	foreign, err := other.Issue("user-42")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "user-42",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not.a.jwt", want: ErrInvalidToken},
		{name: "wrong secret", token: foreign, want: ErrInvalidToken},
		{name: "no subject", token: noSubject, want: ErrMissingSubject},
		{name: "alg none", token: unsigned, want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolver_Expired(t *testing.T) {
	r := NewResolver(testSecret, time.Minute)
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return issuedAt }

	token, err := r.Issue("user-42")
	require.NoError(t, err)

	r.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
