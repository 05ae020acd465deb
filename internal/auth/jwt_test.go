package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_IssueAndValidate(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	id := uuid.New()

	signed, err := tokens.Issue(id)
	require.NoError(t, err)

	got, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	signed, err := tokens.Issue(uuid.New())
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokens("other", time.Hour).Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokens("secret", time.Hour)
		expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := expired.Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := &Claims{
			UserID:           uuid.NewString(),
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("bad user id", func(t *testing.T) {
		claims := &Claims{
			UserID:           "nope",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken(""))
}

func TestSession(t *testing.T) {
	_, ok := SessionFrom(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	s, ok := SessionFrom(WithSession(context.Background(), Session{UserID: id}))
	require.True(t, ok)
	assert.Equal(t, id, s.UserID)
}
