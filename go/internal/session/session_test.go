package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) (*Issuer, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	issuer, err := NewIssuer("test-secret", time.Hour, clock)
	require.NoError(t, err)
	return issuer, clock
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer("", time.Hour, clockwork.NewFakeClock())
	assert.Error(t, err)

	_, err = NewIssuer("secret", 0, clockwork.NewFakeClock())
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	issuer, clock := newTestIssuer(t)

	token, expires, err := issuer.Issue("alice")
	require.NoError(t, err)
	assert.True(t, expires.Equal(clock.Now().Add(time.Hour)))

	team, err := issuer.TeamFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", team)
}

func TestTeamFromToken_Expired(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	token, _, err := issuer.Issue("alice")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = issuer.TeamFromToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTeamFromToken_Invalid(t *testing.T) {
	issuer, clock := newTestIssuer(t)

	other, err := NewIssuer("other-secret", time.Hour, clock)
	require.NoError(t, err)
	forged, _, err := other.Issue("alice")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "tablematch",
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"unsigned", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.TeamFromToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTeamFromRequest(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	token, expires, err := issuer.Issue("bob")
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		team, err := issuer.TeamFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil))
		require.NoError(t, err)
		assert.Equal(t, "", team)
	})

	t.Run("cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SetCookie(rec, token, expires)
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}
		team, err := issuer.TeamFromRequest(req)
		require.NoError(t, err)
		assert.Equal(t, "bob", team)
	})

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		team, err := issuer.TeamFromRequest(req)
		require.NoError(t, err)
		assert.Equal(t, "bob", team)
	})

	t.Run("query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		team, err := issuer.TeamFromRequest(req)
		require.NoError(t, err)
		assert.Equal(t, "bob", team)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token=junk", nil)
		_, err := issuer.TeamFromRequest(req)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTeamContext(t *testing.T) {
	_, ok := TeamFromContext(context.Background())
	assert.False(t, ok)

	team, ok := TeamFromContext(WithTeam(context.Background(), "alice"))
	assert.True(t, ok)
	assert.Equal(t, "alice", team)
}
