package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits the stores keep for amounts.
const MoneyScale = 4

// FitsMoneyScale reports whether d is stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// Participation is a user's paid membership in one auction. Fee is frozen at
// join time.
type Participation struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	AuctionID int64           `json:"auction_id"`
	Fee       decimal.Decimal `json:"fee"`
	IsWinner  bool            `json:"is_winner"`
	IsValid   bool            `json:"is_valid"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Bid rows are append-only.
type Bid struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	AuctionID int64           `json:"auction_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (w *Wallet) Covers(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
