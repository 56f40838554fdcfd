package postgres

import (
	"context"
	"fmt"

	"scoring-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TokenTransactionRepo implements ports.TokenTransactionRepository over the
// append-only token_transactions ledger.
type TokenTransactionRepo struct {
	pool Pool
}

// NewTokenTransactionRepo creates a new TokenTransactionRepo.
func NewTokenTransactionRepo(pool Pool) *TokenTransactionRepo {
	return &TokenTransactionRepo{pool: pool}
}

// InsertTx appends a ledger row inside the same transaction as the balance
// mutation it records, and fills txn.ID.
func (r *TokenTransactionRepo) InsertTx(ctx context.Context, tx pgx.Tx, txn *domain.TokenTransaction) error {
	query := `INSERT INTO token_transactions (user_id, transaction_type, amount, previous_balance,
			new_balance, timestamp, description, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		txn.UserID, txn.TransactionType, txn.Amount, txn.PreviousBalance,
		txn.NewBalance, txn.Timestamp, txn.Description, txn.ReferenceID,
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("insert token transaction: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent ledger rows, newest first.
func (r *TokenTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TokenTransaction, error) {
	query := `SELECT id, user_id, transaction_type, amount, previous_balance, new_balance,
			timestamp, description, reference_id
		FROM token_transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list token transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.TokenTransaction
	for rows.Next() {
		t := domain.TokenTransaction{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.TransactionType, &t.Amount, &t.PreviousBalance, &t.NewBalance,
			&t.Timestamp, &t.Description, &t.ReferenceID,
		); err != nil {
			return nil, fmt.Errorf("scan token transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token transactions: %w", err)
	}
	return txns, nil
}
