package postgres

import (
	"context"
	"fmt"
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UsageRepo implements ports.UsageRepository over the append-only
// api_usage ledger.
type UsageRepo struct {
	pool Pool
}

// NewUsageRepo creates a new UsageRepo.
func NewUsageRepo(pool Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

const insertUsageSQL = `INSERT INTO api_usage (user_id, api_key_id, endpoint, timestamp, tokens_consumed,
		request_size, response_size, processing_time_ms, success, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id`

// Insert appends a usage row outside any debit transaction.
func (r *UsageRepo) Insert(ctx context.Context, u *domain.APIUsage) error {
	err := r.pool.QueryRow(ctx, insertUsageSQL,
		u.UserID, u.APIKeyID, u.Endpoint, u.Timestamp, u.TokensConsumed,
		u.RequestSize, u.ResponseSize, u.ProcessingTimeMs, u.Success, u.ErrorMessage,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// InsertTx appends a usage row inside the debit transaction and fills u.ID.
func (r *UsageRepo) InsertTx(ctx context.Context, tx pgx.Tx, u *domain.APIUsage) error {
	err := tx.QueryRow(ctx, insertUsageSQL,
		u.UserID, u.APIKeyID, u.Endpoint, u.Timestamp, u.TokensConsumed,
		u.RequestSize, u.ResponseSize, u.ProcessingTimeMs, u.Success, u.ErrorMessage,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert usage in tx: %w", err)
	}
	return nil
}

// CountSuccessSince counts committed successful rows in a trailing window.
// A nil apiKeyID counts across all of the user's keys.
func (r *UsageRepo) CountSuccessSince(ctx context.Context, userID uuid.UUID, apiKeyID *int64, since time.Time) (int, error) {
	var count int
	var err error
	if apiKeyID != nil {
		query := `SELECT COUNT(*) FROM api_usage
			WHERE user_id = $1 AND api_key_id = $2 AND success = TRUE AND timestamp >= $3`
		err = r.pool.QueryRow(ctx, query, userID, *apiKeyID, since).Scan(&count)
	} else {
		query := `SELECT COUNT(*) FROM api_usage
			WHERE user_id = $1 AND success = TRUE AND timestamp >= $2`
		err = r.pool.QueryRow(ctx, query, userID, since).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

// AggregateSince computes per-endpoint totals over successful rows.
func (r *UsageRepo) AggregateSince(ctx context.Context, userID uuid.UUID, since time.Time) (*ports.UsageAggregates, error) {
	query := `SELECT endpoint, COUNT(*), COALESCE(SUM(tokens_consumed), 0)
		FROM api_usage
		WHERE user_id = $1 AND success = TRUE AND timestamp >= $2
		GROUP BY endpoint
		ORDER BY COUNT(*) DESC`

	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	defer rows.Close()

	agg := &ports.UsageAggregates{}
	for rows.Next() {
		var e ports.EndpointUsage
		if err := rows.Scan(&e.Endpoint, &e.Requests, &e.Tokens); err != nil {
			return nil, fmt.Errorf("scan usage aggregate: %w", err)
		}
		agg.TotalRequests += e.Requests
		agg.TotalTokens += e.Tokens
		agg.EndpointTotals = append(agg.EndpointTotals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage aggregates: %w", err)
	}
	return agg, nil
}
