package ports

import (
	"context"
	"time"

	"scoring-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
// Methods accepting pgx.Tx run inside transaction blocks for pessimistic locking.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDForUpdate locks the user row; every debit and credit serializes
	// on this lock so no two mutations observe the same previous balance.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	// UpdateBalances writes the balance trio inside a transaction.
	UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, purchased, used float64) error
}

// APIKeyRepository defines persistence operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error // fills key.ID
	GetByHash(ctx context.Context, hashedKey string) (*domain.APIKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	UpdateLastUsed(ctx context.Context, id int64, at time.Time) error
	Deactivate(ctx context.Context, id int64) error
	// DeactivateByName revokes the named active key of a user. Returns false
	// when the user has no active key of that name.
	DeactivateByName(ctx context.Context, userID uuid.UUID, name string) (bool, error)
}

// UsageRepository defines persistence for the append-only usage ledger.
type UsageRepository interface {
	// Insert appends a usage row outside any debit transaction (failed or
	// non-billable calls).
	Insert(ctx context.Context, usage *domain.APIUsage) error
	// InsertTx appends a usage row inside the debit transaction and fills
	// usage.ID.
	InsertTx(ctx context.Context, tx pgx.Tx, usage *domain.APIUsage) error
	// CountSuccessSince counts committed successful rows for a principal in
	// a trailing window. A nil apiKeyID counts across all of the user's keys.
	CountSuccessSince(ctx context.Context, userID uuid.UUID, apiKeyID *int64, since time.Time) (int, error)
	// AggregateSince computes per-endpoint totals over successful rows.
	AggregateSince(ctx context.Context, userID uuid.UUID, since time.Time) (*UsageAggregates, error)
}

// UsageAggregates holds usage ledger totals for a trailing period.
type UsageAggregates struct {
	TotalRequests  int
	TotalTokens    float64
	EndpointTotals []EndpointUsage
}

// EndpointUsage is the per-endpoint slice of a usage aggregate.
type EndpointUsage struct {
	Endpoint string  `json:"endpoint"`
	Requests int     `json:"requests"`
	Tokens   float64 `json:"tokens"`
}

// TokenTransactionRepository defines persistence for the balance ledger.
type TokenTransactionRepository interface {
	// InsertTx appends a ledger row inside the same transaction as the
	// balance mutation it records, and fills txn.ID.
	InsertTx(ctx context.Context, tx pgx.Tx, txn *domain.TokenTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TokenTransaction, error)
}

// LoanRepository defines persistence for scored loan offers. The portfolio
// optimizer selects over the persisted universe.
type LoanRepository interface {
	Insert(ctx context.Context, loan *domain.ScoredLoan) error
	// ListInvestable returns offers with a non-null APR, newest first.
	ListInvestable(ctx context.Context, limit int) ([]domain.ScoredLoan, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
