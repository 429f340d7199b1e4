package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

func newTestIssuer(now time.Time) *Issuer {
	i := NewIssuer(config.Auth{JWTSecret: "secret", TokenTTL: time.Hour})
	i.now = func() time.Time { return now }
	return i
}

func TestIssuer_IssueParse(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	i := newTestIssuer(now)

	user := model.User{
		ID: "0b7e3b56-7a3c-4d7e-9c0e-1d1f7f3f7a10",
		Permissions: model.Permissions{
			model.PermissionCreateBooks: true,
			model.PermissionDeleteBooks: false,
			"FLY":                       true,
		},
	}
	token, exp, err := i.Issue(user)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), exp)

	id, err := i.Parse(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, id.UserID)
	require.Equal(t, model.Permissions{model.PermissionCreateBooks: true}, id.Permissions)
}

func TestIssuer_Parse(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user := model.User{ID: "u1"}

	valid, _, err := newTestIssuer(now).Issue(user)
	require.NoError(t, err)

	foreign, _, err := NewIssuer(config.Auth{JWTSecret: "other", TokenTTL: time.Hour}).Issue(user)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		at      time.Time
		wantErr bool
	}{
		{name: "ok", token: valid, at: now.Add(time.Minute)},
		{name: "expired", token: valid, at: now.Add(2 * time.Hour), wantErr: true},
		{name: "foreign secret", token: foreign, at: now, wantErr: true},
		{name: "alg none", token: unsigned, at: now, wantErr: true},
		{name: "garbage", token: "not.a.token", at: now, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := newTestIssuer(tt.at).Parse(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "u1", id.UserID)
		})
	}
}

func TestPassword(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("p", 4)
	require.NoError(t, err)
	require.NotEqual(t, "p", hash)
	require.True(t, VerifyPassword(hash, "p"))
	require.False(t, VerifyPassword(hash, "q"))
}
