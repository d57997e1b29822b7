package domain

import (
	"fmt"
	"sort"
	"strings"
)

type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortEndingSoon SortKey = "ending-soon"
	SortPriceHigh  SortKey = "price-high"
	SortPriceLow   SortKey = "price-low"

	// SortStartingSoon orders by start time; auctions without one come last.
	SortStartingSoon SortKey = "starting-soon"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortEndingSoon:
		return SortEndingSoon, nil
	case SortPriceHigh:
		return SortPriceHigh, nil
	case SortPriceLow:
		return SortPriceLow, nil
	case SortStartingSoon:
		return SortStartingSoon, nil
	}
	return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, s)
}

// AuctionFilter drives listing. A nil Status means active auctions only.
type AuctionFilter struct {
	Status   *AuctionStatus
	Category string
	Gender   string
	Search   string
	PriceMin *float64
	PriceMax *float64
	SortBy   SortKey
	Limit    int
}

func (f AuctionFilter) EffectiveStatus() AuctionStatus {
	if f.Status == nil {
		return AuctionActive
	}
	return *f.Status
}

func (f AuctionFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

// Matches is used by backings that filter in memory.
func (f AuctionFilter) Matches(a *Auction) bool {
	if a.Status != f.EffectiveStatus() {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if f.Gender != "" && !strings.EqualFold(a.Gender, f.Gender) {
		return false
	}
	if f.PriceMin != nil && a.CurrentPrice < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && a.CurrentPrice > *f.PriceMax {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(a.Title + " " + a.Description + " " + a.RingNumber)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// SortAuctions orders in place. Ties fall back to id so results are stable.
func SortAuctions(auctions []*Auction, key SortKey) {
	less := func(i, j int) bool { return auctions[i].CreatedAt.After(auctions[j].CreatedAt) }
	switch key {
	case SortEndingSoon:
		less = func(i, j int) bool { return auctions[i].EndTime.Before(auctions[j].EndTime) }
	case SortPriceHigh:
		less = func(i, j int) bool { return auctions[i].CurrentPrice > auctions[j].CurrentPrice }
	case SortPriceLow:
		less = func(i, j int) bool { return auctions[i].CurrentPrice < auctions[j].CurrentPrice }
	case SortStartingSoon:
		less = func(i, j int) bool {
			a, b := auctions[i].StartTime, auctions[j].StartTime
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			}
			return a.Before(*b)
		}
	}
	sort.SliceStable(auctions, func(i, j int) bool {
		if less(i, j) {
			return true
		}
		if less(j, i) {
			return false
		}
		return auctions[i].ID < auctions[j].ID
	})
}
