package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
	"pigeon-auction/pkg/utils"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultLockTTL   = 10 * time.Second
	lockPollInterval = 10 * time.Millisecond
)

var releaseScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`)

// AuctionLocker serializes bids for one auction across every instance sharing
// the Redis server. The key carries a random token so a holder whose TTL ran
// out cannot release someone else's lock. There is no fencing token: a
// holder that outlives ttl is not stopped from writing, so ttl must stay
// well above the slowest load-evaluate-save cycle.
type AuctionLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewAuctionLocker(client *redis.Client, ttl time.Duration, log logger.Logger) *AuctionLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &AuctionLocker{client: client, ttl: ttl, log: log}
}

func lockKey(auctionID string) string {
	return fmt.Sprintf("auction:lock:%s", auctionID)
}

func (l *AuctionLocker) Acquire(ctx context.Context, auctionID string) (func(), error) {
	key := lockKey(auctionID)
	token := utils.GenerateID("")

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, auctionID)
			}
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { l.release(auctionID, key, token) })
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, auctionID)
		case <-ticker.C:
		}
	}
}

func (l *AuctionLocker) release(auctionID, key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	switch {
	case err != nil:
		l.log.Error("Failed to release auction lock", "auction_id", auctionID, "error", err)
	case deleted == 0:
		l.log.Warn("Auction lock expired before release", "auction_id", auctionID, "ttl", l.ttl)
	}
}
