package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sealedbid/internal/models"
)

// ParticipationRepo enforces nothing beyond (user_id, auction_id) uniqueness;
// capacity, fee and timing rules belong to the engine.
type ParticipationRepo struct {
	q DBTX
}

const participationColumns = `id, user_id, auction_id, fee, is_winner, is_valid, created_at, updated_at`

func scanParticipation(row rowScanner) (*models.Participation, error) {
	p := &models.Participation{}
	if err := row.Scan(&p.ID, &p.UserID, &p.AuctionID, &p.Fee, &p.IsWinner, &p.IsValid, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (r *ParticipationRepo) Find(ctx context.Context, userID, auctionID int64) (*models.Participation, error) {
	const q = `SELECT ` + participationColumns + ` FROM participations WHERE user_id = $1 AND auction_id = $2`
	p, err := scanParticipation(r.q.QueryRowContext(ctx, q, userID, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select participation: %w", err)
	}
	return p, nil
}

func (r *ParticipationRepo) CountByAuction(ctx context.Context, auctionID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM participations WHERE auction_id = $1`, auctionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return n, nil
}

func (r *ParticipationRepo) CountValidByAuction(ctx context.Context, auctionID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participations WHERE auction_id = $1 AND is_valid = TRUE`, auctionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count valid participations: %w", err)
	}
	return n, nil
}

func (r *ParticipationRepo) Create(ctx context.Context, p *models.Participation) error {
	const q = `
	  INSERT INTO participations (user_id, auction_id, fee, is_winner, is_valid, created_at, updated_at)
	       VALUES ($1, $2, $3, $4, $5, $6, $7)
	    RETURNING id`
	err := r.q.QueryRowContext(ctx, q,
		p.UserID, p.AuctionID, p.Fee, p.IsWinner, p.IsValid, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	return nil
}

// Save flips the two mutable flags.
func (r *ParticipationRepo) Save(ctx context.Context, p *models.Participation) error {
	const q = `UPDATE participations SET is_winner = $1, is_valid = $2, updated_at = $3 WHERE id = $4`
	res, err := r.q.ExecContext(ctx, q, p.IsWinner, p.IsValid, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("update participation %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindValidParticipants returns valid participations ordered by user id, which
// is also the order wallets get locked in.
func (r *ParticipationRepo) FindValidParticipants(ctx context.Context, auctionID int64) ([]models.Participation, error) {
	const q = `SELECT ` + participationColumns + ` FROM participations
	  WHERE auction_id = $1 AND is_valid = TRUE
	  ORDER BY user_id`
	rows, err := r.q.QueryContext(ctx, q, auctionID)
	if err != nil {
		return nil, fmt.Errorf("select valid participants: %w", err)
	}
	return collectParticipations(rows)
}

// FindByUser lists a user's participations created within [from, to].
// A zero bound is open.
func (r *ParticipationRepo) FindByUser(ctx context.Context, userID int64, from, to time.Time) ([]models.Participation, error) {
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	const q = `SELECT ` + participationColumns + ` FROM participations
	  WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
	  ORDER BY created_at DESC, id DESC`
	rows, err := r.q.QueryContext(ctx, q, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("select participations of user %d: %w", userID, err)
	}
	return collectParticipations(rows)
}

// InvalidateByAuction marks every participation of the auction invalid and
// reports how many rows changed.
func (r *ParticipationRepo) InvalidateByAuction(ctx context.Context, auctionID int64, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE participations SET is_valid = FALSE, updated_at = $1 WHERE auction_id = $2 AND is_valid = TRUE`,
		at.UTC(), auctionID)
	if err != nil {
		return 0, fmt.Errorf("invalidate participations: %w", err)
	}
	return res.RowsAffected()
}

func collectParticipations(rows *sql.Rows) ([]models.Participation, error) {
	defer rows.Close()
	var list []models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}
