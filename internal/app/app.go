package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pigeon-auction/internal/auth"
	"pigeon-auction/internal/config"
	"pigeon-auction/internal/domain"
	"pigeon-auction/internal/infrastructure/jsonfile"
	"pigeon-auction/internal/infrastructure/leader"
	"pigeon-auction/internal/infrastructure/lock"
	"pigeon-auction/internal/infrastructure/mysql"
	"pigeon-auction/internal/infrastructure/redis"
	"pigeon-auction/internal/infrastructure/websocket"
	"pigeon-auction/internal/services"
	"pigeon-auction/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

// App holds the wired components shared by the service binaries.
type App struct {
	Config    *config.Config
	Store     domain.AuctionStore
	Locker    domain.AuctionLocker
	Hub       *websocket.Hub
	Resolver  *auth.JWTResolver
	Processor *services.BidProcessor
	Manager   *services.AuctionManager

	leader     domain.LeaderElection
	subscriber domain.EventSubscriber
	listener   *services.EventListener
	sweeper    *services.AuctionSweeper

	rdb *redisClient.Client
	db  *sql.DB
	log logger.Logger
}

// New connects the configured backings and builds the services on top.
// Without Redis everything is in-process: a keyed semaphore locker and the
// hub as the bid event publisher. With Redis the lock, the event channel and
// the sweep leadership are shared between instances.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Hub:      websocket.NewHub(log),
		Resolver: auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		log:      log,
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var publisher domain.EventPublisher = a.Hub
	if cfg.Redis.Enabled {
		if err := a.connectRedis(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Locker = redis.NewAuctionLocker(a.rdb, cfg.Bidding.LockTTL, log)
		publisher = redis.NewEventPublisher(a.rdb)
		a.subscriber = redis.NewRedisEventSubscriber(a.rdb, log)
		a.listener = services.NewEventListener(a.Hub, log)
		a.leader = leader.NewRedisLeaderElection(a.rdb, cfg.Leader.Key, cfg.Leader.TTL, log)
	} else {
		a.Locker = lock.NewKeyedLocker()
	}

	a.Processor = services.NewBidProcessor(a.Store, a.Locker, publisher, cfg.Bidding.LockTimeout, log)
	a.Manager = services.NewAuctionManager(a.Store, a.Locker, cfg.Bidding.LockTimeout, log)
	if cfg.Sweeper.Enabled {
		a.sweeper = services.NewAuctionSweeper(a.Manager, a.leader, cfg.Instance.ID, cfg.Sweeper.Schedule, log)
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case config.DriverJSON:
		store, err := jsonfile.Open(a.Config.Store.Path, a.log)
		if err != nil {
			return err
		}
		a.Store = store
		a.log.Info("Using JSON auction store", "path", a.Config.Store.Path)
	case config.DriverMySQL:
		db, err := mysql.Open(ctx, mysql.Options{
			DSN:             a.Config.MySQL.DSN,
			MaxOpenConns:    a.Config.MySQL.MaxOpenConns,
			MaxIdleConns:    a.Config.MySQL.MaxIdleConns,
			ConnMaxLifetime: a.Config.MySQL.ConnMaxLifetime,
		}, a.log)
		if err != nil {
			return err
		}
		a.db = db
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			return err
		}
		a.Store = mysql.NewAuctionStore(db)
	default:
		return fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
	return nil
}

func (a *App) connectRedis(ctx context.Context) error {
	a.rdb = redisClient.NewClient(&redisClient.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect redis %s: %w", a.Config.Redis.Address, err)
	}
	a.log.Info("Connected to Redis", "address", a.Config.Redis.Address)
	return nil
}

// RealtimeHandler serves the websocket endpoint. Connections close when ctx
// is cancelled.
func (a *App) RealtimeHandler(ctx context.Context) *websocket.Handler {
	return websocket.NewHandler(ctx, a.Hub, a.Processor, a.Resolver, websocket.Options{
		AllowAnonymous: a.Config.Realtime.AllowAnonymous,
		SendBuffer:     a.Config.Realtime.SendBuffer,
	}, a.log)
}

// StartRelay subscribes this instance's hub to the shared event channel. It
// is a no-op without Redis, where the processor publishes to the hub directly.
func (a *App) StartRelay(ctx context.Context) {
	if a.listener == nil {
		return
	}
	go func() {
		err := a.listener.Start(ctx, a.subscriber)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("Event listener stopped", "error", err)
		}
	}()
}

// StartSweeper schedules the expiry sweep when enabled.
func (a *App) StartSweeper(ctx context.Context) error {
	if a.sweeper == nil {
		return nil
	}
	return a.sweeper.Start(ctx)
}

// Close stops the sweeper and releases connections. Safe on a partly built App.
func (a *App) Close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("Failed to close Redis connection", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("Failed to close MySQL connection", "error", err)
		}
	}
}
