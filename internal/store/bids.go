package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sealedbid/internal/models"
)

// BidRepo is append-only: there is no update or delete.
type BidRepo struct {
	q DBTX
}

const bidColumns = `id, user_id, auction_id, amount, created_at`

func scanBid(row rowScanner) (*models.Bid, error) {
	b := &models.Bid{}
	if err := row.Scan(&b.ID, &b.UserID, &b.AuctionID, &b.Amount, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func (r *BidRepo) Create(ctx context.Context, b *models.Bid) error {
	const q = `
	  INSERT INTO bids (user_id, auction_id, amount, created_at)
	       VALUES ($1, $2, $3, $4)
	    RETURNING id`
	if err := r.q.QueryRowContext(ctx, q, b.UserID, b.AuctionID, b.Amount, b.CreatedAt.UTC()).Scan(&b.ID); err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (r *BidRepo) CountByAuctionAndUser(ctx context.Context, auctionID, userID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND user_id = $2`, auctionID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bids: %w", err)
	}
	return n, nil
}

// FindLast returns the most recent bid, or ErrNotFound.
func (r *BidRepo) FindLast(ctx context.Context, auctionID int64) (*models.Bid, error) {
	const q = `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1
	  ORDER BY created_at DESC, id DESC LIMIT 1`
	return r.one(ctx, q, auctionID)
}

// FindTop returns the highest bid. On equal amounts the earliest bid wins, so
// copying the current high bid never takes the lead.
func (r *BidRepo) FindTop(ctx context.Context, auctionID int64) (*models.Bid, error) {
	const q = `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1
	  ORDER BY amount DESC, created_at ASC, id ASC LIMIT 1`
	return r.one(ctx, q, auctionID)
}

func (r *BidRepo) ListByAuction(ctx context.Context, auctionID int64) ([]models.Bid, error) {
	const q = `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY created_at, id`
	rows, err := r.q.QueryContext(ctx, q, auctionID)
	if err != nil {
		return nil, fmt.Errorf("select bids: %w", err)
	}
	defer rows.Close()

	var list []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

func (r *BidRepo) one(ctx context.Context, q string, auctionID int64) (*models.Bid, error) {
	b, err := scanBid(r.q.QueryRowContext(ctx, q, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select bid: %w", err)
	}
	return b, nil
}
