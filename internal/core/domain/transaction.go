package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a token ledger entry.
type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeUsage      TransactionType = "usage"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeRefund     TransactionType = "refund"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeUsage, TransactionTypeAdjustment, TransactionTypeRefund:
		return true
	}
	return false
}

// TokenTransaction is one row of the append-only balance ledger.
// Invariant: NewBalance = PreviousBalance + Amount; for a given user the
// rows ordered by ID reconstruct the balance from zero.
type TokenTransaction struct {
	ID              int64           `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          float64         `json:"amount"` // negative for usage
	PreviousBalance float64         `json:"previous_balance"`
	NewBalance      float64         `json:"new_balance"`
	Timestamp       time.Time       `json:"timestamp"`
	Description     string          `json:"description"`
	ReferenceID     *string         `json:"reference_id,omitempty"`
}
