package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"pigeon-auction/internal/config"
	"pigeon-auction/internal/domain"
	"pigeon-auction/internal/infrastructure/lock"
	"pigeon-auction/internal/infrastructure/redis"
	"pigeon-auction/internal/services"
	"pigeon-auction/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	redisClient "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:    config.StoreConfig{Driver: config.DriverJSON, Path: filepath.Join(t.TempDir(), "auctions.json")},
		Auth:     config.AuthConfig{JWTSecret: "test-secret"},
		Bidding:  config.BiddingConfig{LockTimeout: time.Second, LockTTL: 5 * time.Second},
		Realtime: config.RealtimeConfig{AllowAnonymous: true, SendBuffer: 8},
		Sweeper:  config.SweeperConfig{Enabled: true, Schedule: "@every 1h"},
		Leader:   config.LeaderConfig{TTL: 5 * time.Second, Key: "auction_leader"},
		Instance: config.InstanceConfig{ID: "instance-1"},
	}
}

func createAuction(t *testing.T, a *App) *domain.Auction {
	t.Helper()
	created, err := a.Manager.CreateAuction(context.Background(), &domain.Identity{UserID: "seller-1", Name: "Kees"},
		services.CreateAuctionInput{
			Title:         "Blue bar cock",
			StartingPrice: 1000,
			EndTime:       time.Now().Add(time.Hour),
		})
	require.NoError(t, err)
	return created
}

func TestNew_InProcess(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.IsType(t, &lock.KeyedLocker{}, a.Locker)
	require.NoError(t, a.StartSweeper(ctx))
	a.StartRelay(ctx)

	auction := createAuction(t, a)
	outcome := a.Processor.PlaceBid(ctx, auction.ID, &domain.Identity{UserID: "u1", Name: "Jan"}, 1100, nil)
	require.True(t, outcome.Accepted, outcome.Message)

	result := a.Manager.GetAuction(ctx, auction.ID)
	require.True(t, result.OK())
	assert.Equal(t, 1100.0, result.Auction.CurrentPrice)
	assert.NotNil(t, a.RealtimeHandler(ctx))
}

func TestNew_WithRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Enabled: true, Address: mr.Addr()}

	a, err := New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.IsType(t, &redis.AuctionLocker{}, a.Locker)

	watcher := redisClient.NewClient(&redisClient.Options{Addr: mr.Addr()})
	t.Cleanup(func() { watcher.Close() })
	ps := watcher.Subscribe(ctx, redis.EventsChannel)
	t.Cleanup(func() { ps.Close() })
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	a.StartRelay(ctx)
	require.Eventually(t, func() bool {
		n, err := watcher.PubSubNumSub(ctx, redis.EventsChannel).Result()
		return err == nil && n[redis.EventsChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	auction := createAuction(t, a)
	outcome := a.Processor.PlaceBid(ctx, auction.ID, &domain.Identity{UserID: "u1", Name: "Jan"}, 1100, nil)
	require.True(t, outcome.Accepted, outcome.Message)
	assert.False(t, mr.Exists("auction:lock:"+auction.ID))

	select {
	case msg := <-ps.Channel():
		var event domain.BidPlacedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, auction.ID, event.AuctionID)
		assert.Equal(t, 1100.0, event.NewPrice)
	case <-time.After(2 * time.Second):
		t.Fatal("bid event not published to redis")
	}
}

func TestNew_Failures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "sqlite"
	_, err := New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg = testConfig(t)
	cfg.Redis = config.RedisConfig{Enabled: true, Address: addr}
	_, err = New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
