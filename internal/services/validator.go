package services

import (
	"fmt"
	"math"
	"time"

	"pigeon-auction/internal/domain"
)

// Evaluate decides whether amount may be placed on auction at instant now.
// It has no side effects and never fails for business reasons; a rejected bid
// comes back as a Decision with a reason. A nil auction or an amount that is
// not a finite positive number is a caller bug and panics.
func Evaluate(auction *domain.Auction, amount float64, now time.Time) domain.Decision {
	if auction == nil {
		panic("services.Evaluate: nil auction")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		panic(fmt.Sprintf("services.Evaluate: invalid bid amount %v", amount))
	}

	if auction.Status != domain.AuctionActive {
		if auction.Status == domain.AuctionEnded {
			return reject(domain.ReasonAuctionEnded, "auction has ended")
		}
		return reject(domain.ReasonAuctionNotActive,
			fmt.Sprintf("auction is not active (status: %s)", auction.Status))
	}

	if !auction.EndTime.After(now) {
		return reject(domain.ReasonAuctionEnded, "auction has ended")
	}

	if amount <= auction.CurrentPrice {
		return reject(domain.ReasonBidTooLow,
			fmt.Sprintf("bid must be higher than the current price of %.2f", auction.CurrentPrice))
	}

	decision := domain.Decision{
		Accepted:   true,
		NewPrice:   amount,
		NewEndTime: auction.EndTime,
	}

	// Only one extension per accepted bid; later bids inside the new window
	// extend again.
	timeLeft := auction.EndTime.Sub(now)
	if timeLeft > 0 && timeLeft <= auction.SnipeThreshold() {
		decision.NewEndTime = auction.EndTime.Add(auction.SnipeExtension())
		decision.WasExtended = true
	}

	return decision
}

func reject(reason domain.Reason, message string) domain.Decision {
	return domain.Decision{Reason: reason, Message: message}
}
