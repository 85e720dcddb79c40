package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "rewards:course:1", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "rewards:course:1", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "rewards:*"))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}

func TestNamespacedKey(t *testing.T) {
	assert.Equal(t, "levelup:rewards:course:1", namespaced("rewards:course:1"))
}
