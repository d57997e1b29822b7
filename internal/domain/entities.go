package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSnipeThresholdMinutes = 5
	DefaultSnipeExtensionMinutes = 5
)

type Auction struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Gender      string `json:"gender,omitempty"`
	RingNumber  string `json:"ringNumber,omitempty"`

	StartingPrice float64  `json:"startingPrice"`
	CurrentPrice  float64  `json:"currentPrice"`
	BuyNowPrice   *float64 `json:"buyNowPrice,omitempty"`
	ReservePrice  *float64 `json:"reservePrice,omitempty"`
	ReserveMet    bool     `json:"reserveMet"`

	StartTime             *time.Time `json:"startTime,omitempty"`
	EndTime               time.Time  `json:"endTime"`
	SnipeThresholdMinutes int        `json:"snipeThresholdMinutes"`
	SnipeExtensionMinutes int        `json:"snipeExtensionMinutes"`

	Status AuctionStatus `json:"status"`
	Seller Seller        `json:"seller"`

	// Bids is the ledger, newest first.
	Bids  []*Bid        `json:"bids"`
	Count AuctionCounts `json:"_count"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Seller is a snapshot of the owner's identity taken when the auction was created.
type Seller struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Contact    string  `json:"contact,omitempty"`
	Reputation float64 `json:"reputation"`
}

type AuctionCounts struct {
	Bids      int `json:"bids"`
	Watchlist int `json:"watchlist"`
}

type Bid struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auctionId"`
	Amount    float64   `json:"amount"`
	Bidder    Bidder    `json:"bidder"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bidder holds the display name as it was when the bid was placed. It is never
// refreshed from the identity provider.
type Bidder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Identity is what the identity collaborator resolves a credential to.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type AuctionStatus int

const (
	AuctionPending AuctionStatus = iota
	AuctionActive
	AuctionEnded
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseAuctionStatus(s string) (AuctionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return AuctionPending, nil
	case "active":
		return AuctionActive, nil
	case "ended":
		return AuctionEnded, nil
	case "cancelled", "canceled":
		return AuctionCancelled, nil
	}
	return AuctionPending, fmt.Errorf("%w: unknown auction status %q", ErrInvalidInput, s)
}

func (s AuctionStatus) MarshalText() ([]byte, error) {
	if s < AuctionPending || s > AuctionCancelled {
		return nil, fmt.Errorf("invalid auction status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *AuctionStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAuctionStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SnipeThreshold falls back to the default when the auction has no value set.
func (a *Auction) SnipeThreshold() time.Duration {
	minutes := a.SnipeThresholdMinutes
	if minutes <= 0 {
		minutes = DefaultSnipeThresholdMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (a *Auction) SnipeExtension() time.Duration {
	minutes := a.SnipeExtensionMinutes
	if minutes <= 0 {
		minutes = DefaultSnipeExtensionMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// RefreshDerived recomputes the bid counter and the reserve flag from the ledger.
func (a *Auction) RefreshDerived() {
	a.Count.Bids = len(a.Bids)
	if a.ReservePrice == nil {
		a.ReserveMet = true
		return
	}
	a.ReserveMet = len(a.Bids) > 0 && a.CurrentPrice >= *a.ReservePrice
}

func (a *Auction) IsOwnedBy(userID string) bool {
	return userID != "" && a.Seller.ID == userID
}

// Clone returns a deep copy. Stores only ever hand out clones.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	c := *a
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		c.BuyNowPrice = &v
	}
	if a.ReservePrice != nil {
		v := *a.ReservePrice
		c.ReservePrice = &v
	}
	if a.StartTime != nil {
		v := *a.StartTime
		c.StartTime = &v
	}
	if a.Bids != nil {
		c.Bids = make([]*Bid, len(a.Bids))
		for i, b := range a.Bids {
			bc := *b
			c.Bids[i] = &bc
		}
	}
	return &c
}

// BidPlacedEvent is fanned out to every subscriber of an auction room.
type BidPlacedEvent struct {
	AuctionID   string    `json:"auctionId"`
	Bid         *Bid      `json:"bid"`
	NewPrice    float64   `json:"newPrice"`
	WasExtended bool      `json:"wasExtended"`
	NewEndTime  time.Time `json:"newEndTime"`
}
