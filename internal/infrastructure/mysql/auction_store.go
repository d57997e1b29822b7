package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/utils"

	"github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

const auctionColumns = `a.id, a.title, a.description, a.category, a.gender, a.ring_number,
        a.starting_price, a.current_price, a.buy_now_price, a.reserve_price,
        a.start_time, a.end_time, a.snipe_threshold_minutes, a.snipe_extension_minutes,
        a.status, a.seller_id, a.seller_name, a.seller_contact, a.seller_reputation,
        a.watchlist_count, a.created_at, a.updated_at,
        (SELECT COUNT(*) FROM bids b WHERE b.auction_id = a.id) AS bid_count`

// AuctionStore keeps auctions in one row each and the ledger in an
// append-only bids table. Save writes the auction row and any ledger entries
// not yet stored in one transaction.
type AuctionStore struct {
	db *sql.DB
}

func NewAuctionStore(db *sql.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		a        domain.Auction
		buyNow   sql.NullFloat64
		reserve  sql.NullFloat64
		start    sql.NullTime
		status   int
		bidCount int
	)

	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Category, &a.Gender, &a.RingNumber,
		&a.StartingPrice, &a.CurrentPrice, &buyNow, &reserve,
		&start, &a.EndTime, &a.SnipeThresholdMinutes, &a.SnipeExtensionMinutes,
		&status, &a.Seller.ID, &a.Seller.Name, &a.Seller.Contact, &a.Seller.Reputation,
		&a.Count.Watchlist, &a.CreatedAt, &a.UpdatedAt,
		&bidCount,
	)
	if err != nil {
		return nil, err
	}

	if buyNow.Valid {
		a.BuyNowPrice = &buyNow.Float64
	}
	if reserve.Valid {
		a.ReservePrice = &reserve.Float64
	}
	if start.Valid {
		a.StartTime = &start.Time
	}
	a.Status = domain.AuctionStatus(status)
	a.Count.Bids = bidCount
	return &a, nil
}

func (r *AuctionStore) Load(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions a WHERE a.id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
		}
		return nil, fmt.Errorf("load auction %s: %w", auctionID, err)
	}

	bids, err := r.loadBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	auction.Bids = bids
	auction.RefreshDerived()
	return auction, nil
}

func (r *AuctionStore) loadBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, amount, bidder_id, bidder_name, created_at
        FROM bids WHERE auction_id = ?
        ORDER BY seq DESC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load bids %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := make([]*domain.Bid, 0)
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.Amount, &b.Bidder.ID, &b.Bidder.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, &b)
	}
	return bids, rows.Err()
}

func (r *AuctionStore) Save(ctx context.Context, auction *domain.Auction) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := `
            UPDATE auctions SET
                title = ?, description = ?, category = ?, gender = ?, ring_number = ?,
                starting_price = ?, current_price = ?, buy_now_price = ?, reserve_price = ?,
                start_time = ?, end_time = ?, snipe_threshold_minutes = ?, snipe_extension_minutes = ?,
                status = ?, seller_name = ?, seller_contact = ?, seller_reputation = ?,
                watchlist_count = ?, updated_at = ?
            WHERE id = ?
        `
		_, err := tx.ExecContext(ctx, query,
			auction.Title, auction.Description, auction.Category, auction.Gender, auction.RingNumber,
			auction.StartingPrice, auction.CurrentPrice, nullFloat(auction.BuyNowPrice), nullFloat(auction.ReservePrice),
			nullTime(auction.StartTime), auction.EndTime, auction.SnipeThresholdMinutes, auction.SnipeExtensionMinutes,
			int(auction.Status), auction.Seller.Name, auction.Seller.Contact, auction.Seller.Reputation,
			auction.Count.Watchlist, auction.UpdatedAt,
			auction.ID,
		)
		if err != nil {
			return fmt.Errorf("update auction %s: %w", auction.ID, err)
		}
		return insertBids(ctx, tx, auction.Bids)
	})
}

func (r *AuctionStore) Create(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	created := auction.Clone()
	if created.ID == "" {
		created.ID = utils.GenerateID("")
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = created.CreatedAt
	}
	if created.Bids == nil {
		created.Bids = []*domain.Bid{}
	}
	created.RefreshDerived()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		query := `
            INSERT INTO auctions (
                id, title, description, category, gender, ring_number,
                starting_price, current_price, buy_now_price, reserve_price,
                start_time, end_time, snipe_threshold_minutes, snipe_extension_minutes,
                status, seller_id, seller_name, seller_contact, seller_reputation,
                watchlist_count, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `
		_, err := tx.ExecContext(ctx, query,
			created.ID, created.Title, created.Description, created.Category, created.Gender, created.RingNumber,
			created.StartingPrice, created.CurrentPrice, nullFloat(created.BuyNowPrice), nullFloat(created.ReservePrice),
			nullTime(created.StartTime), created.EndTime, created.SnipeThresholdMinutes, created.SnipeExtensionMinutes,
			int(created.Status), created.Seller.ID, created.Seller.Name, created.Seller.Contact, created.Seller.Reputation,
			created.Count.Watchlist, created.CreatedAt, created.UpdatedAt,
		)
		if err != nil {
			var myErr *mysql.MySQLError
			if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
				return fmt.Errorf("%w: auction %s already exists", domain.ErrInvalidInput, created.ID)
			}
			return fmt.Errorf("insert auction: %w", err)
		}
		return insertBids(ctx, tx, created.Bids)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertBids stores ledger entries oldest first so seq follows placement
// order. Entries already present are skipped.
func insertBids(ctx context.Context, tx *sql.Tx, bids []*domain.Bid) error {
	if len(bids) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT IGNORE INTO bids (id, auction_id, amount, bidder_id, bidder_name, created_at) VALUES `)
	args := make([]any, 0, len(bids)*6)
	for i := len(bids) - 1; i >= 0; i-- {
		b := bids[i]
		if i != len(bids)-1 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, b.ID, b.AuctionID, b.Amount, b.Bidder.ID, b.Bidder.Name, b.CreatedAt)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert bids: %w", err)
	}
	return nil
}

func (r *AuctionStore) List(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	auctions := make([]*domain.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		if a.ReservePrice == nil {
			a.ReserveMet = true
		} else {
			a.ReserveMet = a.Count.Bids > 0 && a.CurrentPrice >= *a.ReservePrice
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

func buildListQuery(filter domain.AuctionFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + auctionColumns + ` FROM auctions a WHERE a.status = ?`)
	args := []any{int(filter.EffectiveStatus())}

	if filter.Category != "" {
		sb.WriteString(` AND a.category = ?`)
		args = append(args, filter.Category)
	}
	if filter.Gender != "" {
		sb.WriteString(` AND a.gender = ?`)
		args = append(args, filter.Gender)
	}
	if filter.PriceMin != nil {
		sb.WriteString(` AND a.current_price >= ?`)
		args = append(args, *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		sb.WriteString(` AND a.current_price <= ?`)
		args = append(args, *filter.PriceMax)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + q + "%"
		sb.WriteString(` AND (a.title LIKE ? OR a.description LIKE ? OR a.ring_number LIKE ?)`)
		args = append(args, like, like, like)
	}

	switch filter.SortBy {
	case domain.SortEndingSoon:
		sb.WriteString(` ORDER BY a.end_time ASC, a.id ASC`)
	case domain.SortPriceHigh:
		sb.WriteString(` ORDER BY a.current_price DESC, a.id ASC`)
	case domain.SortPriceLow:
		sb.WriteString(` ORDER BY a.current_price ASC, a.id ASC`)
	case domain.SortStartingSoon:
		sb.WriteString(` ORDER BY a.start_time IS NULL, a.start_time ASC, a.id ASC`)
	default:
		sb.WriteString(` ORDER BY a.created_at DESC, a.id ASC`)
	}

	sb.WriteString(` LIMIT ?`)
	args = append(args, filter.EffectiveLimit())
	return sb.String(), args
}

func (r *AuctionStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
