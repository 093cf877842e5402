package model

import (
    "fmt"
    "time"
)

// MileageTransactionType determines the sign applied to a ledger entry.
type MileageTransactionType string

const (
    MileageDeposit    MileageTransactionType = "deposit"
    MileageWithdrawal MileageTransactionType = "withdrawal"
    MileageReward     MileageTransactionType = "reward"
    MileageUsage      MileageTransactionType = "usage"
)

// ParseMileageTransactionType validates a raw type string.
func ParseMileageTransactionType(s string) (MileageTransactionType, error) {
    switch t := MileageTransactionType(s); t {
    case MileageDeposit, MileageWithdrawal, MileageReward, MileageUsage:
        return t, nil
    }
    return "", fmt.Errorf("unknown mileage transaction type %q", s)
}

// Sign returns +1 for credits (deposit, reward) and -1 for debits.
func (t MileageTransactionType) Sign() int64 {
    switch t {
    case MileageDeposit, MileageReward:
        return 1
    default:
        return -1
    }
}

// MileageTransaction is one append-only ledger row.  Amount is always a
// positive magnitude; BalanceAfter = BalanceBefore + Sign()*Amount.
type MileageTransaction struct {
    ID              uint64                 `db:"id" json:"id"`
    UserID          uint64                 `db:"user_id" json:"user_id"`
    TransactionType MileageTransactionType `db:"transaction_type" json:"transaction_type"`
    Amount          int64                  `db:"amount" json:"amount"`
    BalanceBefore   int64                  `db:"balance_before" json:"balance_before"`
    BalanceAfter    int64                  `db:"balance_after" json:"balance_after"`
    Description     string                 `db:"description" json:"description"`
    ReferenceID     *string                `db:"reference_id" json:"reference_id,omitempty"`
    CreatedAt       time.Time              `db:"created_at" json:"created_at"`
}

// MileageFilter narrows a transaction history query.  Zero values mean "any".
type MileageFilter struct {
    Type MileageTransactionType
    From *time.Time
    To   *time.Time
}

// Page is a 1-based pagination request.
type Page struct {
    Number int
    Size   int
}

// Normalize clamps the page to sane bounds and returns LIMIT/OFFSET values.
func (p Page) Normalize() (limit, offset int) {
    if p.Number < 1 {
        p.Number = 1
    }
    if p.Size < 1 {
        p.Size = 20
    }
    if p.Size > 100 {
        p.Size = 100
    }
    return p.Size, (p.Number - 1) * p.Size
}
