package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scoring-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const apiKeyColumns = `id, user_id, key_hash, name, created_at, expires_at, last_used, is_active,
		requests_per_minute, requests_per_hour, requests_per_day`

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

// Create inserts a new API key and fills key.ID.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	query := `INSERT INTO api_keys (user_id, key_hash, name, created_at, expires_at, is_active,
			requests_per_minute, requests_per_hour, requests_per_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		k.UserID, k.HashedKey, k.Name, k.CreatedAt, k.ExpiresAt, k.IsActive,
		k.PerMinute, k.PerHour, k.PerDay,
	).Scan(&k.ID)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	err := row.Scan(
		&k.ID, &k.UserID, &k.HashedKey, &k.Name, &k.CreatedAt, &k.ExpiresAt, &k.LastUsed, &k.IsActive,
		&k.PerMinute, &k.PerHour, &k.PerDay,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return k, nil
}

// GetByHash fetches a key by its stored digest.
func (r *APIKeyRepo) GetByHash(ctx context.Context, hashedKey string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, hashedKey))
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return k, nil
}

// ListByUser returns all keys of a user, newest first.
func (r *APIKeyRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		k := domain.APIKey{}
		if err := rows.Scan(
			&k.ID, &k.UserID, &k.HashedKey, &k.Name, &k.CreatedAt, &k.ExpiresAt, &k.LastUsed, &k.IsActive,
			&k.PerMinute, &k.PerHour, &k.PerDay,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

// UpdateLastUsed stamps the key's last successful validation time.
func (r *APIKeyRepo) UpdateLastUsed(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE api_keys SET last_used = $1 WHERE id = $2`

	if _, err := r.pool.Exec(ctx, query, at, id); err != nil {
		return fmt.Errorf("update last_used: %w", err)
	}
	return nil
}

// Deactivate marks a key inactive by id.
func (r *APIKeyRepo) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE api_keys SET is_active = FALSE WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %d", id)
	}
	return nil
}

// DeactivateByName revokes the named active key of a user. Returns false
// when the user has no active key of that name.
func (r *APIKeyRepo) DeactivateByName(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	query := `UPDATE api_keys SET is_active = FALSE WHERE user_id = $1 AND name = $2 AND is_active = TRUE`

	tag, err := r.pool.Exec(ctx, query, userID, name)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
