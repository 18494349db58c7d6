package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sealedbid/internal/models"
)

type AuctionRepo struct {
	q         DBTX
	forUpdate string
}

const auctionColumns = `id, creator_id, title, min_participants, max_participants,
	entry_fee, max_price, min_increment, bids_per_participant, status,
	start_time, end_time, relaunch_time, extension_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	a := &models.Auction{}
	err := row.Scan(&a.ID, &a.CreatorID, &a.Title, &a.MinParticipants, &a.MaxParticipants,
		&a.EntryFee, &a.MaxPrice, &a.MinIncrement, &a.BidsPerParticipant, &a.Status,
		&a.StartTime, &a.EndTime, &a.RelaunchTime, &a.ExtensionCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// Create inserts a and fills in its id.
func (r *AuctionRepo) Create(ctx context.Context, a *models.Auction) error {
	const q = `
	  INSERT INTO auctions (creator_id, title, min_participants, max_participants,
	                        entry_fee, max_price, min_increment, bids_per_participant,
	                        status, start_time, end_time, relaunch_time, extension_count,
	                        created_at, updated_at)
	       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	    RETURNING id`
	err := r.q.QueryRowContext(ctx, q,
		a.CreatorID, a.Title, a.MinParticipants, a.MaxParticipants,
		a.EntryFee, a.MaxPrice, a.MinIncrement, a.BidsPerParticipant,
		string(a.Status), a.StartTime.UTC(), a.EndTime.UTC(), a.RelaunchTime, a.ExtensionCount,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

func (r *AuctionRepo) FindByID(ctx context.Context, id int64) (*models.Auction, error) {
	return r.find(ctx, id, "")
}

// FindByIDForUpdate reads the auction and holds its row lock until the
// surrounding transaction ends. Every lifecycle transaction starts here.
func (r *AuctionRepo) FindByIDForUpdate(ctx context.Context, id int64) (*models.Auction, error) {
	return r.find(ctx, id, r.forUpdate)
}

func (r *AuctionRepo) find(ctx context.Context, id int64, suffix string) (*models.Auction, error) {
	q := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1` + suffix
	a, err := scanAuction(r.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select auction %d: %w", id, err)
	}
	return a, nil
}

// Save persists the mutable part of an auction: status, window and extension count.
func (r *AuctionRepo) Save(ctx context.Context, a *models.Auction) error {
	const q = `
	  UPDATE auctions
	     SET status = $1, start_time = $2, end_time = $3,
	         extension_count = $4, updated_at = $5
	   WHERE id = $6`
	res, err := r.q.ExecContext(ctx, q,
		string(a.Status), a.StartTime.UTC(), a.EndTime.UTC(), a.ExtensionCount, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("update auction %d: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns auctions newest first, optionally filtered by status.
func (r *AuctionRepo) List(ctx context.Context, status models.Status, limit, offset int) ([]models.Auction, error) {
	if limit <= 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + auctionColumns + ` FROM auctions`
	if status != "" {
		rows, err = r.q.QueryContext(ctx, base+` WHERE status = $1 ORDER BY start_time DESC, id DESC LIMIT $2 OFFSET $3`,
			string(status), limit, offset)
	} else {
		rows, err = r.q.QueryContext(ctx, base+` ORDER BY start_time DESC, id DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return collectAuctions(rows, limit)
}

// FindDueForStart selects auctions still waiting for bidding whose start
// time has passed.
func (r *AuctionRepo) FindDueForStart(ctx context.Context, now time.Time) ([]models.Auction, error) {
	const q = `SELECT ` + auctionColumns + ` FROM auctions
	  WHERE status IN ('created', 'open') AND start_time <= $1
	  ORDER BY start_time, id`
	rows, err := r.q.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("select due for start: %w", err)
	}
	return collectAuctions(rows, 0)
}

// FindDueForClose selects bidding auctions whose end time has passed.
func (r *AuctionRepo) FindDueForClose(ctx context.Context, now time.Time) ([]models.Auction, error) {
	const q = `SELECT ` + auctionColumns + ` FROM auctions
	  WHERE status = 'bidding' AND end_time <= $1
	  ORDER BY end_time, id`
	rows, err := r.q.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("select due for close: %w", err)
	}
	return collectAuctions(rows, 0)
}

func collectAuctions(rows *sql.Rows, capHint int) ([]models.Auction, error) {
	defer rows.Close()
	list := make([]models.Auction, 0, capHint)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}
