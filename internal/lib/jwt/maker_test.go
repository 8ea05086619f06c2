package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	maker := NewJWTMaker("test_secret_key_1234567890", "tarot-miniapp", 15*time.Minute)

	tests := []struct {
		name    string
		subject string
	}{
		{name: "telegram user", subject: "123456789"},
		{name: "project scoped", subject: "project:2"},
		{name: "empty subject", subject: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.subject)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.subject, claims.Subject)
			assert.Equal(t, "tarot-miniapp", claims.Client)
			assert.Equal(t, "tarot-miniapp", claims.Issuer)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_Invalid(t *testing.T) {
	maker := NewJWTMaker("secret", "tarot-miniapp", time.Minute)

	otherSecret := NewJWTMaker("other", "tarot-miniapp", time.Minute)
	foreign, err := otherSecret.GenerateToken("1")
	require.NoError(t, err)

	otherIssuer := NewJWTMaker("secret", "someone-else", time.Minute)
	wrongIssuer, err := otherIssuer.GenerateToken("1")
	require.NoError(t, err)

	expiredMaker := NewJWTMaker("secret", "tarot-miniapp", time.Minute)
	expiredMaker.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredMaker.GenerateToken("1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
		{name: "wrong secret", token: foreign},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "expired", token: expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
