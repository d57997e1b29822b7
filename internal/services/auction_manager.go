package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
	"pigeon-auction/pkg/utils"
)

// CreateAuctionInput is what a seller submits. Zero snipe settings fall back
// to the defaults.
type CreateAuctionInput struct {
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Category              string     `json:"category"`
	Gender                string     `json:"gender"`
	RingNumber            string     `json:"ringNumber"`
	StartingPrice         float64    `json:"startingPrice"`
	BuyNowPrice           *float64   `json:"buyNowPrice"`
	ReservePrice          *float64   `json:"reservePrice"`
	StartTime             *time.Time `json:"startTime"`
	EndTime               time.Time  `json:"endTime"`
	SnipeThresholdMinutes int        `json:"snipeThresholdMinutes"`
	SnipeExtensionMinutes int        `json:"snipeExtensionMinutes"`
	Status                string     `json:"status"`
	SellerContact         string     `json:"sellerContact"`
}

// AuctionManager owns every auction level transition other than bidding. It
// goes through the same per-auction lock as the bid processor so status
// changes never interleave with a bid.
type AuctionManager struct {
	store       domain.AuctionStore
	locker      domain.AuctionLocker
	lockTimeout time.Duration
	now         domain.Clock
	log         logger.Logger
}

func NewAuctionManager(
	store domain.AuctionStore,
	locker domain.AuctionLocker,
	lockTimeout time.Duration,
	log logger.Logger,
) *AuctionManager {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &AuctionManager{
		store:       store,
		locker:      locker,
		lockTimeout: lockTimeout,
		now:         time.Now,
		log:         log,
	}
}

func (am *AuctionManager) SetClock(clock domain.Clock) {
	am.now = clock
}

func (am *AuctionManager) CreateAuction(ctx context.Context, seller *domain.Identity, in CreateAuctionInput) (*domain.Auction, error) {
	if seller == nil || seller.UserID == "" {
		return nil, domain.ErrMissingCredential
	}

	now := am.now()
	if err := validateCreateInput(in, now); err != nil {
		return nil, err
	}

	status := domain.AuctionActive
	if in.Status != "" {
		parsed, err := domain.ParseAuctionStatus(in.Status)
		if err != nil {
			return nil, err
		}
		if parsed != domain.AuctionActive && parsed != domain.AuctionPending {
			return nil, fmt.Errorf("%w: new auctions must be pending or active", domain.ErrInvalidInput)
		}
		status = parsed
	}

	threshold := in.SnipeThresholdMinutes
	if threshold <= 0 {
		threshold = domain.DefaultSnipeThresholdMinutes
	}
	extension := in.SnipeExtensionMinutes
	if extension <= 0 {
		extension = domain.DefaultSnipeExtensionMinutes
	}

	auction := &domain.Auction{
		ID:                    utils.GenerateID(""),
		Title:                 strings.TrimSpace(in.Title),
		Description:           in.Description,
		Category:              in.Category,
		Gender:                in.Gender,
		RingNumber:            in.RingNumber,
		StartingPrice:         in.StartingPrice,
		CurrentPrice:          in.StartingPrice,
		BuyNowPrice:           in.BuyNowPrice,
		ReservePrice:          in.ReservePrice,
		StartTime:             in.StartTime,
		EndTime:               in.EndTime,
		SnipeThresholdMinutes: threshold,
		SnipeExtensionMinutes: extension,
		Status:                status,
		Seller: domain.Seller{
			ID:      seller.UserID,
			Name:    seller.Name,
			Contact: in.SellerContact,
		},
		Bids:      []*domain.Bid{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	auction.RefreshDerived()

	created, err := am.store.Create(ctx, auction)
	if err != nil {
		am.log.Error("Failed to create auction", "seller_id", seller.UserID, "error", err)
		return nil, err
	}

	am.log.Info("Auction created", "auction_id", created.ID, "seller_id", seller.UserID, "end_time", created.EndTime)
	return created, nil
}

func validateCreateInput(in CreateAuctionInput, now time.Time) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	case !validAmount(in.StartingPrice):
		return fmt.Errorf("%w: starting price must be positive", domain.ErrInvalidInput)
	case !in.EndTime.After(now):
		return fmt.Errorf("%w: end time must be in the future", domain.ErrInvalidInput)
	case in.StartTime != nil && !in.StartTime.Before(in.EndTime):
		return fmt.Errorf("%w: start time must be before end time", domain.ErrInvalidInput)
	case in.BuyNowPrice != nil && (!validAmount(*in.BuyNowPrice) || *in.BuyNowPrice < in.StartingPrice):
		return fmt.Errorf("%w: buy now price must be at least the starting price", domain.ErrInvalidInput)
	case in.ReservePrice != nil && (!validAmount(*in.ReservePrice) || *in.ReservePrice < in.StartingPrice):
		return fmt.Errorf("%w: reserve price must be at least the starting price", domain.ErrInvalidInput)
	case in.SnipeThresholdMinutes < 0 || in.SnipeExtensionMinutes < 0:
		return fmt.Errorf("%w: snipe settings cannot be negative", domain.ErrInvalidInput)
	}
	return nil
}

// GetAuction returns the current snapshot, ending it first if its time is up.
func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) domain.OperationResult {
	var result domain.OperationResult
	err := am.withLock(ctx, auctionID, func() error {
		auction, err := am.store.Load(ctx, auctionID)
		if err != nil {
			return err
		}
		if err := expireIfDue(ctx, am.store, auction, am.now()); err != nil {
			return err
		}
		result.Auction = auction
		return nil
	})
	if err != nil {
		return am.failure(auctionID, "get", err)
	}
	return result
}

func (am *AuctionManager) ListAuctions(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	auctions, err := am.store.List(ctx, filter)
	if err != nil {
		am.log.Error("Failed to list auctions", "error", err)
		return nil, err
	}
	return auctions, nil
}

// CancelAuction lets the seller withdraw a pending or active auction. The
// ledger is kept as is.
func (am *AuctionManager) CancelAuction(ctx context.Context, auctionID string, requester *domain.Identity) domain.OperationResult {
	if requester == nil || requester.UserID == "" {
		return domain.OperationResult{Reason: domain.ReasonUnauthorized, Message: "authentication required"}
	}

	var result domain.OperationResult
	err := am.withLock(ctx, auctionID, func() error {
		auction, err := am.store.Load(ctx, auctionID)
		if err != nil {
			return err
		}
		now := am.now()
		if err := expireIfDue(ctx, am.store, auction, now); err != nil {
			return err
		}

		if !auction.IsOwnedBy(requester.UserID) {
			result = domain.OperationResult{Reason: domain.ReasonForbidden, Message: "only the seller can cancel this auction"}
			return nil
		}
		switch auction.Status {
		case domain.AuctionPending, domain.AuctionActive:
		case domain.AuctionEnded:
			result = domain.OperationResult{Reason: domain.ReasonAuctionEnded, Message: "auction has ended"}
			return nil
		default:
			result = domain.OperationResult{
				Reason:  domain.ReasonAuctionNotActive,
				Message: fmt.Sprintf("auction is not active (status: %s)", auction.Status),
			}
			return nil
		}

		auction.Status = domain.AuctionCancelled
		auction.UpdatedAt = now
		if err := am.store.Save(ctx, auction); err != nil {
			return err
		}
		result.Auction = auction
		return nil
	})
	if err != nil {
		return am.failure(auctionID, "cancel", err)
	}

	if result.OK() {
		am.log.Info("Auction cancelled", "auction_id", auctionID, "seller_id", requester.UserID)
	}
	return result
}

// EndExpiredAuctions ends every active auction whose end time has passed and
// returns how many were ended.
func (am *AuctionManager) EndExpiredAuctions(ctx context.Context) (int, error) {
	active := domain.AuctionActive
	candidates, err := am.store.List(ctx, domain.AuctionFilter{
		Status: &active,
		SortBy: domain.SortEndingSoon,
		Limit:  domain.MaxListLimit,
	})
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, c := range candidates {
		if c.EndTime.After(am.now()) {
			// sorted by end time, nothing further is due
			break
		}
		err := am.withLock(ctx, c.ID, func() error {
			auction, err := am.store.Load(ctx, c.ID)
			if err != nil {
				return err
			}
			wasActive := auction.Status == domain.AuctionActive
			if err := expireIfDue(ctx, am.store, auction, am.now()); err != nil {
				return err
			}
			if wasActive && auction.Status == domain.AuctionEnded {
				ended++
			}
			return nil
		})
		if err != nil {
			am.log.Error("Failed to end auction", "auction_id", c.ID, "error", err)
			continue
		}
	}

	if ended > 0 {
		am.log.Info("Ended expired auctions", "count", ended)
	}
	return ended, nil
}

// StartDueAuctions activates pending auctions whose start time has come. One
// pass handles at most MaxListLimit of them, earliest start first; the rest
// are picked up by the next pass.
func (am *AuctionManager) StartDueAuctions(ctx context.Context) (int, error) {
	pending := domain.AuctionPending
	candidates, err := am.store.List(ctx, domain.AuctionFilter{
		Status: &pending,
		SortBy: domain.SortStartingSoon,
		Limit:  domain.MaxListLimit,
	})
	if err != nil {
		return 0, err
	}

	started := 0
	for _, c := range candidates {
		if c.StartTime == nil || c.StartTime.After(am.now()) {
			// sorted by start time, nothing further is due
			break
		}
		err := am.withLock(ctx, c.ID, func() error {
			auction, err := am.store.Load(ctx, c.ID)
			if err != nil {
				return err
			}
			if auction.Status != domain.AuctionPending {
				return nil
			}
			auction.Status = domain.AuctionActive
			auction.UpdatedAt = am.now()
			if err := am.store.Save(ctx, auction); err != nil {
				return err
			}
			started++
			return nil
		})
		if err != nil {
			am.log.Error("Failed to start auction", "auction_id", c.ID, "error", err)
		}
	}

	if started > 0 {
		am.log.Info("Started pending auctions", "count", started)
	}
	return started, nil
}

func (am *AuctionManager) withLock(ctx context.Context, auctionID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, am.lockTimeout)
	release, err := am.locker.Acquire(lockCtx, auctionID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	}
	defer release()
	return fn()
}

func (am *AuctionManager) failure(auctionID, op string, err error) domain.OperationResult {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return domain.OperationResult{Reason: domain.ReasonNotFound, Message: "auction not found"}
	case errors.Is(err, domain.ErrLockTimeout):
		am.log.Warn("Auction lock not acquired", "auction_id", auctionID, "op", op, "error", err)
		return domain.OperationResult{Reason: domain.ReasonBusy, Message: "auction is busy, please retry"}
	default:
		am.log.Error("Auction operation failed", "auction_id", auctionID, "op", op, "error", err)
		return domain.OperationResult{Reason: domain.ReasonStorageError, Message: "storage failure"}
	}
}
