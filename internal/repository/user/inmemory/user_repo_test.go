package inmemory_test

import (
	"context"
	"testing"

	"taskPrioritizer/internal/models/user"
	"taskPrioritizer/internal/repository"
	"taskPrioritizer/internal/repository/user/inmemory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewUserStorage()

	u := &user.User{ID: uuid.New(), Email: "Alice@Example.com", PasswordHash: "hash"}
	require.NoError(t, storage.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	got, err := storage.GetByEmail(ctx, "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestUserStorage_Duplicate(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewUserStorage()

	require.NoError(t, storage.Create(ctx, &user.User{ID: uuid.New(), Email: "bob@example.com"}))
	err := storage.Create(ctx, &user.User{ID: uuid.New(), Email: "BOB@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserStorage_NotFound(t *testing.T) {
	_, err := inmemory.NewUserStorage().GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
