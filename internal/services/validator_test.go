package services

import (
	"math"
	"testing"
	"time"

	"pigeon-auction/internal/domain"

	"github.com/stretchr/testify/require"
)

var scenarioEnd = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func activeAuction(price float64, end time.Time) *domain.Auction {
	return &domain.Auction{
		ID:                    "A1",
		StartingPrice:         price,
		CurrentPrice:          price,
		EndTime:               end,
		SnipeThresholdMinutes: 5,
		SnipeExtensionMinutes: 5,
		Status:                domain.AuctionActive,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		auction      func() *domain.Auction
		amount       float64
		now          time.Time
		wantAccepted bool
		wantReason   domain.Reason
		wantExtended bool
		wantEnd      time.Time
		wantMessage  string
	}{
		{
			name:         "accepted_inside_snipe_window",
			auction:      func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:       1100,
			now:          scenarioEnd.Add(-4 * time.Minute),
			wantAccepted: true,
			wantExtended: true,
			wantEnd:      scenarioEnd.Add(5 * time.Minute),
		},
		{
			name:         "accepted_three_minutes_before_end",
			auction:      func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:       1001,
			now:          scenarioEnd.Add(-3 * time.Minute),
			wantAccepted: true,
			wantExtended: true,
			wantEnd:      scenarioEnd.Add(5 * time.Minute),
		},
		{
			name:         "accepted_at_exact_threshold_extends",
			auction:      func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:       1001,
			now:          scenarioEnd.Add(-5 * time.Minute),
			wantAccepted: true,
			wantExtended: true,
			wantEnd:      scenarioEnd.Add(5 * time.Minute),
		},
		{
			name:         "accepted_outside_window_no_extension",
			auction:      func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:       1500,
			now:          scenarioEnd.Add(-10 * time.Minute),
			wantAccepted: true,
			wantExtended: false,
			wantEnd:      scenarioEnd,
		},
		{
			name: "custom_threshold_and_extension",
			auction: func() *domain.Auction {
				a := activeAuction(1000, scenarioEnd)
				a.SnipeThresholdMinutes = 1
				a.SnipeExtensionMinutes = 2
				return a
			},
			amount:       1200,
			now:          scenarioEnd.Add(-30 * time.Second),
			wantAccepted: true,
			wantExtended: true,
			wantEnd:      scenarioEnd.Add(2 * time.Minute),
		},
		{
			name: "unset_snipe_settings_use_defaults",
			auction: func() *domain.Auction {
				a := activeAuction(1000, scenarioEnd)
				a.SnipeThresholdMinutes = 0
				a.SnipeExtensionMinutes = 0
				return a
			},
			amount:       1200,
			now:          scenarioEnd.Add(-2 * time.Minute),
			wantAccepted: true,
			wantExtended: true,
			wantEnd:      scenarioEnd.Add(5 * time.Minute),
		},
		{
			name:        "equal_to_current_price_too_low",
			auction:     func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:      1000,
			now:         scenarioEnd.Add(-time.Hour),
			wantReason:  domain.ReasonBidTooLow,
			wantMessage: "bid must be higher than the current price of 1000.00",
		},
		{
			name:        "below_current_price_cites_price",
			auction:     func() *domain.Auction { return activeAuction(1100, scenarioEnd.Add(5*time.Minute)) },
			amount:      1050,
			now:         scenarioEnd,
			wantReason:  domain.ReasonBidTooLow,
			wantMessage: "bid must be higher than the current price of 1100.00",
		},
		{
			name:       "end_time_equal_to_now",
			auction:    func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:     2000,
			now:        scenarioEnd,
			wantReason: domain.ReasonAuctionEnded,
		},
		{
			name:       "end_time_passed",
			auction:    func() *domain.Auction { return activeAuction(1000, scenarioEnd) },
			amount:     2000,
			now:        scenarioEnd.Add(time.Second),
			wantReason: domain.ReasonAuctionEnded,
		},
		{
			name: "pending_not_active",
			auction: func() *domain.Auction {
				a := activeAuction(1000, scenarioEnd)
				a.Status = domain.AuctionPending
				return a
			},
			amount:     2000,
			now:        scenarioEnd.Add(-time.Hour),
			wantReason: domain.ReasonAuctionNotActive,
		},
		{
			name: "cancelled_not_active",
			auction: func() *domain.Auction {
				a := activeAuction(1000, scenarioEnd)
				a.Status = domain.AuctionCancelled
				return a
			},
			amount:     2000,
			now:        scenarioEnd.Add(-time.Hour),
			wantReason: domain.ReasonAuctionNotActive,
		},
		{
			name: "ended_status_reports_ended",
			auction: func() *domain.Auction {
				a := activeAuction(1000, scenarioEnd)
				a.Status = domain.AuctionEnded
				return a
			},
			amount:     2000,
			now:        scenarioEnd.Add(-time.Hour),
			wantReason: domain.ReasonAuctionEnded,
		},
		{
			name: "status_checked_before_price",
			auction: func() *domain.Auction {
				a := activeAuction(1000, scenarioEnd)
				a.Status = domain.AuctionPending
				return a
			},
			amount:     10,
			now:        scenarioEnd.Add(-time.Hour),
			wantReason: domain.ReasonAuctionNotActive,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			auction := tc.auction()
			before := auction.Clone()

			d := Evaluate(auction, tc.amount, tc.now)

			require.Equal(t, before, auction, "evaluate must not mutate the auction")
			require.Equal(t, tc.wantAccepted, d.Accepted)
			if !tc.wantAccepted {
				require.Equal(t, tc.wantReason, d.Reason)
				if tc.wantMessage != "" {
					require.Equal(t, tc.wantMessage, d.Message)
				}
				return
			}
			require.Empty(t, d.Reason)
			require.Equal(t, tc.amount, d.NewPrice)
			require.Equal(t, tc.wantExtended, d.WasExtended)
			require.True(t, tc.wantEnd.Equal(d.NewEndTime), "want %s got %s", tc.wantEnd, d.NewEndTime)
		})
	}
}

func TestEvaluate_ProgrammerErrorsPanic(t *testing.T) {
	a := activeAuction(1000, scenarioEnd)
	now := scenarioEnd.Add(-time.Hour)

	require.Panics(t, func() { Evaluate(nil, 100, now) })
	require.Panics(t, func() { Evaluate(a, math.NaN(), now) })
	require.Panics(t, func() { Evaluate(a, math.Inf(1), now) })
	require.Panics(t, func() { Evaluate(a, 0, now) })
	require.Panics(t, func() { Evaluate(a, -5, now) })
}
