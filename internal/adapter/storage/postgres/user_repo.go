package postgres

import (
	"context"
	"errors"
	"fmt"

	"scoring-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `user_id, username, email, password_hash, created_at, is_active, is_verified,
		token_balance, total_tokens_purchased, total_tokens_used,
		requests_per_minute, requests_per_hour, requests_per_day`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt, u.IsActive, u.IsVerified,
		u.TokenBalance, u.TotalPurchased, u.TotalUsed,
		u.Limits.PerMinute, u.Limits.PerHour, u.Limits.PerDay,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.IsActive, &u.IsVerified,
		&u.TokenBalance, &u.TotalPurchased, &u.TotalUsed,
		&u.Limits.PerMinute, &u.Limits.PerHour, &u.Limits.PerDay,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByID fetches a user by UUID (without locking).
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByIDForUpdate fetches a user with a pessimistic row lock.
// This MUST be called within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1 FOR UPDATE`

	u, err := scanUser(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}
	return u, nil
}

// UpdateBalances writes the balance trio within a transaction.
func (r *UserRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, purchased, used float64) error {
	query := `UPDATE users SET token_balance = $1, total_tokens_purchased = $2, total_tokens_used = $3
		WHERE user_id = $4`

	tag, err := tx.Exec(ctx, query, balance, purchased, used, id)
	if err != nil {
		return fmt.Errorf("update user balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}
