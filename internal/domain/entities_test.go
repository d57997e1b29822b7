package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuctionStatus_JSONRoundTrip(t *testing.T) {
	a := Auction{ID: "A1", Status: AuctionEnded}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.Contains(t, string(data), `"status":"ended"`)

	var decoded Auction
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, AuctionEnded, decoded.Status)

	require.Error(t, json.Unmarshal([]byte(`{"status":"sold"}`), &decoded))
}

func TestAuction_RefreshDerived(t *testing.T) {
	reserve := 1500.0
	tests := []struct {
		name        string
		reserve     *float64
		price       float64
		bids        int
		wantReserve bool
	}{
		{name: "no_reserve", reserve: nil, price: 100, bids: 0, wantReserve: true},
		{name: "reserve_no_bids", reserve: &reserve, price: 2000, bids: 0, wantReserve: false},
		{name: "reserve_below", reserve: &reserve, price: 1200, bids: 2, wantReserve: false},
		{name: "reserve_reached", reserve: &reserve, price: 1500, bids: 3, wantReserve: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &Auction{ReservePrice: tc.reserve, CurrentPrice: tc.price}
			for i := 0; i < tc.bids; i++ {
				a.Bids = append(a.Bids, &Bid{ID: string(rune('a' + i))})
			}
			a.RefreshDerived()
			assert.Equal(t, tc.bids, a.Count.Bids)
			assert.Equal(t, tc.wantReserve, a.ReserveMet)
		})
	}
}

func TestAuction_CloneIsDeep(t *testing.T) {
	buyNow := 5000.0
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	orig := &Auction{
		ID:          "A1",
		BuyNowPrice: &buyNow,
		StartTime:   &start,
		Bids:        []*Bid{{ID: "b1", Amount: 100, Bidder: Bidder{ID: "u1", Name: "Jan"}}},
	}

	c := orig.Clone()
	*c.BuyNowPrice = 1
	c.Bids[0].Bidder.Name = "Piet"
	c.Bids = append(c.Bids, &Bid{ID: "b2"})

	assert.Equal(t, 5000.0, *orig.BuyNowPrice)
	assert.Equal(t, "Jan", orig.Bids[0].Bidder.Name)
	assert.Len(t, orig.Bids, 1)
}

func TestAuction_SnipeDefaults(t *testing.T) {
	a := &Auction{}
	assert.Equal(t, 5*time.Minute, a.SnipeThreshold())
	assert.Equal(t, 5*time.Minute, a.SnipeExtension())

	a.SnipeThresholdMinutes = 2
	a.SnipeExtensionMinutes = 10
	assert.Equal(t, 2*time.Minute, a.SnipeThreshold())
	assert.Equal(t, 10*time.Minute, a.SnipeExtension())
}

func TestSortAuctions(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Auction{ID: "a", CurrentPrice: 300, CreatedAt: base, EndTime: base.Add(3 * time.Hour)}
	b := &Auction{ID: "b", CurrentPrice: 100, CreatedAt: base.Add(time.Hour), EndTime: base.Add(time.Hour)}
	c := &Auction{ID: "c", CurrentPrice: 200, CreatedAt: base.Add(2 * time.Hour), EndTime: base.Add(2 * time.Hour)}
	aStart, cStart := base.Add(2*time.Hour), base.Add(time.Hour)
	a.StartTime, c.StartTime = &aStart, &cStart

	ids := func(list []*Auction) []string {
		out := make([]string, 0, len(list))
		for _, x := range list {
			out = append(out, x.ID)
		}
		return out
	}

	tests := []struct {
		key  SortKey
		want []string
	}{
		{SortNewest, []string{"c", "b", "a"}},
		{SortEndingSoon, []string{"b", "c", "a"}},
		{SortPriceHigh, []string{"a", "c", "b"}},
		{SortPriceLow, []string{"b", "c", "a"}},
		{SortStartingSoon, []string{"c", "a", "b"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.key), func(t *testing.T) {
			list := []*Auction{a, b, c}
			SortAuctions(list, tc.key)
			assert.Equal(t, tc.want, ids(list))
		})
	}
}

func TestAuctionFilter_Matches(t *testing.T) {
	lo, hi := 100.0, 500.0
	ended := AuctionEnded
	a := &Auction{
		Status:       AuctionActive,
		Title:        "Olympic cock Blue Bar",
		Category:     "racing",
		Gender:       "male",
		CurrentPrice: 250,
	}

	assert.True(t, AuctionFilter{}.Matches(a))
	assert.True(t, AuctionFilter{Category: "Racing", Gender: "MALE", Search: "blue", PriceMin: &lo, PriceMax: &hi}.Matches(a))
	assert.False(t, AuctionFilter{Status: &ended}.Matches(a))
	assert.False(t, AuctionFilter{Search: "hen"}.Matches(a))
	assert.False(t, AuctionFilter{PriceMax: &lo}.Matches(a))
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, key)

	key, err = ParseSortKey("Ending-Soon")
	require.NoError(t, err)
	assert.Equal(t, SortEndingSoon, key)

	key, err = ParseSortKey("starting-soon")
	require.NoError(t, err)
	assert.Equal(t, SortStartingSoon, key)

	_, err = ParseSortKey("random")
	require.ErrorIs(t, err, ErrInvalidInput)
}
