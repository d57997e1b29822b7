package leader

import (
	"context"
	"testing"
	"time"

	"pigeon-auction/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLeaderElection(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	election := NewRedisLeaderElection(client, "", 30*time.Second, logger.NewNop())

	ok, err := election.IsLeader(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = election.BecomeLeader(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = election.BecomeLeader(ctx, "i2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = election.IsLeader(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, ok)

	// only the holder can release
	require.NoError(t, election.ReleaseLeadership(ctx, "i2"))
	assert.True(t, mr.Exists(DefaultKey))

	require.NoError(t, election.ReleaseLeadership(ctx, "i1"))
	assert.False(t, mr.Exists(DefaultKey))

	ok, err = election.BecomeLeader(ctx, "i2")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, election.ReleaseLeadership(ctx, "i2"))
}

func TestRedisLeaderElection_LeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	election := NewRedisLeaderElection(client, "sweeper_leader", time.Hour, logger.NewNop())

	ok, err := election.BecomeLeader(ctx, "i1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Hour)

	ok, err = election.IsLeader(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = election.BecomeLeader(ctx, "i2")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, election.ReleaseLeadership(ctx, "i2"))
	require.NoError(t, election.ReleaseLeadership(ctx, "i1"))
}
