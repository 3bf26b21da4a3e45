package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/USA-RedDragon/crashula/internal/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	revoker := sessions.NewRevoker(nil)

	revoked, err := revoker.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, revoker.Revoke(ctx, "abc", time.Now().Add(time.Hour)))
	revoked, err = revoker.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = revoker.IsRevoked(ctx, "def")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevokerIgnoresExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	revoker := sessions.NewMemoryRevoker()
	require.NoError(t, revoker.Revoke(ctx, "old", time.Now().Add(-time.Minute)))
	revoked, err := revoker.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}
