package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/store.go -package=mock pigeon-auction/internal/domain AuctionStore

// Store interface. Save always receives a complete snapshot and replaces the
// record; a concurrent Load never observes a half-written record. The store
// does not serialize writers, that is the bid processor's job.
type AuctionStore interface {
	Load(ctx context.Context, auctionID string) (*Auction, error)
	Save(ctx context.Context, auction *Auction) error
	Create(ctx context.Context, auction *Auction) (*Auction, error)
	List(ctx context.Context, filter AuctionFilter) ([]*Auction, error)
}

// AuctionLocker grants exclusive processing rights for one auction id.
// Acquire blocks until the lock is held or ctx is done.
type AuctionLocker interface {
	Acquire(ctx context.Context, auctionID string) (release func(), err error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidPlaced(ctx context.Context, event *BidPlacedEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidPlacedEvent) error

// IdentityResolver turns an opaque credential into a stable user identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*Identity, error)
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Clock lets tests pin "now".
type Clock func() time.Time
