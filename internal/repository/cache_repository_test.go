package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "summary:overview", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "summary:overview", map[string]int{"students": 1}, time.Minute))

	removed, err := repo.DeleteByPattern(ctx, "summary:*")
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, repo.Close())
}
