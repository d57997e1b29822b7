package domain

import "time"

// Reason is the machine readable code carried by every rejected operation.
type Reason string

const (
	ReasonAuctionNotActive Reason = "AUCTION_NOT_ACTIVE"
	ReasonAuctionEnded     Reason = "AUCTION_ENDED"
	ReasonBidTooLow        Reason = "BID_TOO_LOW"
	ReasonNotFound         Reason = "NOT_FOUND"
	ReasonUnauthorized     Reason = "UNAUTHORIZED"
	ReasonForbidden        Reason = "FORBIDDEN"
	ReasonInvalidAmount    Reason = "INVALID_AMOUNT"
	ReasonBusy             Reason = "BUSY"
	ReasonStorageError     Reason = "STORAGE_ERROR"
)

// Retryable reports whether the caller may simply try again.
func (r Reason) Retryable() bool {
	return r == ReasonBusy
}

// Decision is the result of evaluating one proposed bid against an auction snapshot.
type Decision struct {
	Accepted    bool
	Reason      Reason
	Message     string
	NewPrice    float64
	NewEndTime  time.Time
	WasExtended bool
}

// SettlementOutcome is returned to the bidder. It is never persisted.
type SettlementOutcome struct {
	Accepted         bool      `json:"accepted"`
	Bid              *Bid      `json:"bid,omitempty"`
	NewPrice         float64   `json:"newPrice,omitempty"`
	WasExtended      bool      `json:"wasExtended"`
	NewEndTime       time.Time `json:"newEndTime,omitempty"`
	AutoBidTriggered bool      `json:"autoBidTriggered"`

	Reason       Reason   `json:"reason,omitempty"`
	Message      string   `json:"message,omitempty"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
}

func Rejected(reason Reason, message string) SettlementOutcome {
	return SettlementOutcome{Reason: reason, Message: message}
}

// WithCurrentPrice attaches the price the bidder has to beat.
func (o SettlementOutcome) WithCurrentPrice(price float64) SettlementOutcome {
	o.CurrentPrice = &price
	return o
}

// OperationResult is the outcome of an auction level operation other than bidding.
type OperationResult struct {
	Auction *Auction
	Reason  Reason
	Message string
}

func (r OperationResult) OK() bool {
	return r.Reason == ""
}
