package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledgers bundles the repositories bound to a single DBTX.
type Ledgers struct {
	Auctions       *AuctionRepo
	Wallets        *WalletRepo
	Participations *ParticipationRepo
	Bids           *BidRepo
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

// Read returns ledgers bound to the pool, for reads that need no transaction.
func (s *Store) Read() *Ledgers {
	return s.bind(s.db)
}

// InTx runs fn inside one transaction. Any error returned by fn rolls the
// whole transaction back; the error is passed through untouched.
func (s *Store) InTx(ctx context.Context, fn func(l *Ledgers) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) bind(q DBTX) *Ledgers {
	lock := ""
	if s.dialect == Postgres {
		lock = " FOR UPDATE"
	}
	return &Ledgers{
		Auctions:       &AuctionRepo{q: q, forUpdate: lock},
		Wallets:        &WalletRepo{q: q, forUpdate: lock},
		Participations: &ParticipationRepo{q: q},
		Bids:           &BidRepo{q: q},
	}
}
