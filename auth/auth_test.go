package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	token, err := NewIssuer("s3cret", "triad", time.Hour).Issue(42, "ana")
	require.NoError(t, err)

	id, err := NewVerifier("s3cret", "triad").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Username: "ana"}, id)
}

func TestVerifyRejects(t *testing.T) {
	good, err := NewIssuer("s3cret", "triad", time.Hour).Issue(1, "")
	require.NoError(t, err)

	expiredIssuer := NewIssuer("s3cret", "triad", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue(1, "")
	require.NoError(t, err)

	badSubject, err := NewIssuer("s3cret", "triad", time.Hour).Issue(0, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *Verifier
		token    string
		want     error
	}{
		{"empty", NewVerifier("s3cret", "triad"), "", ErrMissingToken},
		{"wrong secret", NewVerifier("other", "triad"), good, ErrInvalidToken},
		{"wrong issuer", NewVerifier("s3cret", "elsewhere"), good, ErrInvalidToken},
		{"expired", NewVerifier("s3cret", "triad"), expired, ErrInvalidToken},
		{"non-positive subject", NewVerifier("s3cret", "triad"), badSubject, ErrInvalidToken},
		{"garbage", NewVerifier("s3cret", "triad"), "a.b.c", ErrInvalidToken},
		{"no secret", NewVerifier("", "triad"), good, ErrNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/match/x?token=fromquery", nil)
	assert.Equal(t, "fromquery", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer fromheader")
	assert.Equal(t, "fromheader", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "fromquery", TokenFromRequest(r))
}
