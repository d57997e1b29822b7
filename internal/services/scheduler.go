package services

import (
	"context"
	"sync"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 1m"

// AuctionSweeper periodically starts due auctions and ends expired ones, on
// top of the lazy expiry done by every read and bid. With a leader election
// configured only the current leader sweeps.
type AuctionSweeper struct {
	cron       *cron.Cron
	schedule   string
	manager    *AuctionManager
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger

	mu      sync.Mutex
	running bool
}

func NewAuctionSweeper(manager *AuctionManager, leader domain.LeaderElection, instanceID, schedule string,
	log logger.Logger) *AuctionSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &AuctionSweeper{
		cron:       cron.New(),
		schedule:   schedule,
		manager:    manager,
		leader:     leader,
		instanceID: instanceID,
		log:        log,
	}
}

func (s *AuctionSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting auction sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *AuctionSweeper) Stop() {
	s.log.Info("Stopping auction sweeper")
	<-s.cron.Stop().Done()

	if s.leader != nil {
		if err := s.leader.ReleaseLeadership(context.Background(), s.instanceID); err != nil {
			s.log.Warn("Failed to release leadership", "instance_id", s.instanceID, "error", err)
		}
	}
}

// Sweep runs one pass. Overlapping runs are skipped.
func (s *AuctionSweeper) Sweep(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if !s.isLeader(ctx) {
		return
	}

	if _, err := s.manager.StartDueAuctions(ctx); err != nil {
		s.log.Error("Failed to start due auctions", "error", err)
	}
	if _, err := s.manager.EndExpiredAuctions(ctx); err != nil {
		s.log.Error("Failed to end expired auctions", "error", err)
	}
}

func (s *AuctionSweeper) isLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}

	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return false
	}
	if isLeader {
		return true
	}

	became, err := s.leader.BecomeLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to acquire leadership", "error", err)
		return false
	}
	if became {
		s.log.Info("Became sweep leader", "instance_id", s.instanceID)
	}
	return became
}
