package services

import (
	"context"
	"errors"
	"math"
	"time"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
	"pigeon-auction/pkg/utils"
)

const (
	DefaultLockTimeout = 5 * time.Second

	publishTimeout = 5 * time.Second
)

// BidProcessor is the only writer of bids. Every attempt for one auction runs
// under that auction's lock: load, evaluate, persist, publish, release.
type BidProcessor struct {
	store       domain.AuctionStore
	locker      domain.AuctionLocker
	publisher   domain.EventPublisher
	lockTimeout time.Duration
	now         domain.Clock
	log         logger.Logger
}

func NewBidProcessor(
	store domain.AuctionStore,
	locker domain.AuctionLocker,
	publisher domain.EventPublisher,
	lockTimeout time.Duration,
	log logger.Logger,
) *BidProcessor {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &BidProcessor{
		store:       store,
		locker:      locker,
		publisher:   publisher,
		lockTimeout: lockTimeout,
		now:         time.Now,
		log:         log,
	}
}

func (p *BidProcessor) SetClock(clock domain.Clock) {
	p.now = clock
}

// PlaceBid settles one bid attempt. Business failures come back as a rejected
// outcome; the returned value is never partially applied.
func (p *BidProcessor) PlaceBid(ctx context.Context, auctionID string, bidder *domain.Identity, amount float64, maxBid *float64) domain.SettlementOutcome {
	if bidder == nil || bidder.UserID == "" {
		return domain.Rejected(domain.ReasonUnauthorized, "authentication required to place bids")
	}
	if !validAmount(amount) {
		return domain.Rejected(domain.ReasonInvalidAmount, "bid amount must be a positive number")
	}
	if maxBid != nil && (!validAmount(*maxBid) || *maxBid < amount) {
		return domain.Rejected(domain.ReasonInvalidAmount, "maximum bid must be at least the bid amount")
	}

	lockCtx, cancel := context.WithTimeout(ctx, p.lockTimeout)
	release, err := p.locker.Acquire(lockCtx, auctionID)
	cancel()
	if err != nil {
		p.log.Warn("Bid lock not acquired", "auction_id", auctionID, "user_id", bidder.UserID, "error", err)
		return domain.Rejected(domain.ReasonBusy, "auction is busy, please retry")
	}
	defer release()

	auction, err := p.store.Load(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return domain.Rejected(domain.ReasonNotFound, "auction not found")
		}
		p.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		return domain.Rejected(domain.ReasonStorageError, "failed to load auction")
	}

	now := p.now()

	if err := expireIfDue(ctx, p.store, auction, now); err != nil {
		p.log.Error("Failed to persist auction expiry", "auction_id", auctionID, "error", err)
		return domain.Rejected(domain.ReasonStorageError, "failed to update auction")
	}

	decision := Evaluate(auction, amount, now)
	if !decision.Accepted {
		p.log.Debug("Bid rejected",
			"auction_id", auctionID,
			"user_id", bidder.UserID,
			"amount", amount,
			"reason", decision.Reason,
		)
		return domain.Rejected(decision.Reason, decision.Message).WithCurrentPrice(auction.CurrentPrice)
	}

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		AuctionID: auction.ID,
		Amount:    amount,
		Bidder:    domain.Bidder{ID: bidder.UserID, Name: bidder.Name},
		CreatedAt: now,
	}

	updated := auction.Clone()
	updated.Bids = append([]*domain.Bid{bid}, updated.Bids...)
	updated.CurrentPrice = decision.NewPrice
	updated.EndTime = decision.NewEndTime
	updated.UpdatedAt = now
	updated.RefreshDerived()

	if err := p.store.Save(ctx, updated); err != nil {
		p.log.Error("Failed to save bid", "auction_id", auctionID, "bid_id", bid.ID, "error", err)
		return domain.Rejected(domain.ReasonStorageError, "failed to record bid").WithCurrentPrice(auction.CurrentPrice)
	}

	p.log.Info("Bid accepted",
		"auction_id", auctionID,
		"bid_id", bid.ID,
		"user_id", bidder.UserID,
		"amount", amount,
		"was_extended", decision.WasExtended,
	)

	event := &domain.BidPlacedEvent{
		AuctionID:   auction.ID,
		Bid:         bid,
		NewPrice:    decision.NewPrice,
		WasExtended: decision.WasExtended,
		NewEndTime:  decision.NewEndTime,
	}
	if p.publisher != nil {
		// the bid is committed; a caller that went away must not stop the broadcast
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err := p.publisher.PublishBidPlaced(pubCtx, event)
		cancel()
		if err != nil {
			p.log.Error("Failed to publish bid event", "auction_id", auctionID, "bid_id", bid.ID, "error", err)
		}
	}

	return domain.SettlementOutcome{
		Accepted:    true,
		Bid:         bid,
		NewPrice:    decision.NewPrice,
		WasExtended: decision.WasExtended,
		NewEndTime:  decision.NewEndTime,
	}
}

// expireIfDue flips an active auction whose end time passed to ended and
// persists it. The caller must hold the auction lock.
func expireIfDue(ctx context.Context, store domain.AuctionStore, auction *domain.Auction, now time.Time) error {
	if auction.Status != domain.AuctionActive || auction.EndTime.After(now) {
		return nil
	}
	auction.Status = domain.AuctionEnded
	auction.UpdatedAt = now
	return store.Save(ctx, auction)
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
