package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory repositories backing the end-to-end tests. The real services
// run on top of these, so everything except the SQL itself is exercised.

// --- Users ---

type inMemoryUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryUserRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, purchased, used float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.TokenBalance = balance
	u.TotalPurchased = purchased
	u.TotalUsed = used
	return nil
}

// --- API keys ---

type inMemoryKeyRepo struct {
	mu     sync.Mutex
	nextID int64
	keys   map[int64]*domain.APIKey
}

func newInMemoryKeyRepo() *inMemoryKeyRepo {
	return &inMemoryKeyRepo{keys: make(map[int64]*domain.APIKey)}
}

func (r *inMemoryKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	key.ID = r.nextID
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *inMemoryKeyRepo) GetByHash(ctx context.Context, hashedKey string) (*domain.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.HashedKey == hashedKey {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryKeyRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.APIKey
	for _, k := range r.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inMemoryKeyRepo) UpdateLastUsed(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		t := at
		k.LastUsed = &t
	}
	return nil
}

func (r *inMemoryKeyRepo) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return fmt.Errorf("key not found")
	}
	k.IsActive = false
	return nil
}

func (r *inMemoryKeyRepo) DeactivateByName(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.UserID == userID && k.Name == name && k.IsActive {
			k.IsActive = false
			return true, nil
		}
	}
	return false, nil
}

// --- Usage ledger ---

type inMemoryUsageRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*domain.APIUsage
}

func newInMemoryUsageRepo() *inMemoryUsageRepo {
	return &inMemoryUsageRepo{}
}

func (r *inMemoryUsageRepo) Insert(ctx context.Context, usage *domain.APIUsage) error {
	return r.InsertTx(ctx, nil, usage)
}

func (r *inMemoryUsageRepo) InsertTx(ctx context.Context, tx pgx.Tx, usage *domain.APIUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	usage.ID = r.nextID
	cp := *usage
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *inMemoryUsageRepo) CountSuccessSince(ctx context.Context, userID uuid.UUID, apiKeyID *int64, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, row := range r.rows {
		if row.UserID != userID || !row.Success || row.Timestamp.Before(since) {
			continue
		}
		if apiKeyID != nil && (row.APIKeyID == nil || *row.APIKeyID != *apiKeyID) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *inMemoryUsageRepo) AggregateSince(ctx context.Context, userID uuid.UUID, since time.Time) (*ports.UsageAggregates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := &ports.UsageAggregates{}
	perEndpoint := make(map[string]*ports.EndpointUsage)
	for _, row := range r.rows {
		if row.UserID != userID || !row.Success || row.Timestamp.Before(since) {
			continue
		}
		agg.TotalRequests++
		agg.TotalTokens += row.TokensConsumed
		e, ok := perEndpoint[row.Endpoint]
		if !ok {
			e = &ports.EndpointUsage{Endpoint: row.Endpoint}
			perEndpoint[row.Endpoint] = e
		}
		e.Requests++
		e.Tokens += row.TokensConsumed
	}
	for _, e := range perEndpoint {
		agg.EndpointTotals = append(agg.EndpointTotals, *e)
	}
	sort.Slice(agg.EndpointTotals, func(i, j int) bool {
		return agg.EndpointTotals[i].Requests > agg.EndpointTotals[j].Requests
	})
	return agg, nil
}

// --- Balance ledger ---

type inMemoryTxnRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*domain.TokenTransaction
}

func newInMemoryTxnRepo() *inMemoryTxnRepo {
	return &inMemoryTxnRepo{}
}

func (r *inMemoryTxnRepo) InsertTx(ctx context.Context, tx pgx.Tx, txn *domain.TokenTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	txn.ID = r.nextID
	cp := *txn
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *inMemoryTxnRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TokenTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TokenTransaction
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].UserID == userID {
			out = append(out, *r.rows[i])
		}
	}
	return out, nil
}

// --- Loan universe ---

type inMemoryLoanRepo struct {
	mu    sync.Mutex
	loans []domain.ScoredLoan
}

func newInMemoryLoanRepo() *inMemoryLoanRepo {
	return &inMemoryLoanRepo{}
}

func (r *inMemoryLoanRepo) Insert(ctx context.Context, loan *domain.ScoredLoan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loans = append(r.loans, *loan)
	return nil
}

func (r *inMemoryLoanRepo) ListInvestable(ctx context.Context, limit int) ([]domain.ScoredLoan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScoredLoan
	for i := len(r.loans) - 1; i >= 0 && len(out) < limit; i-- {
		if r.loans[i].APR != nil {
			out = append(out, r.loans[i])
		}
	}
	return out, nil
}

// --- Transactor ---

// inMemoryTransactor serializes Begin..Commit/Rollback spans with a mutex
// so concurrent debits observe the same discipline as the database row lock.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &inMemoryTx{release: &t.mu}, nil
}

type inMemoryTx struct {
	release *sync.Mutex
	done    bool
}

func (t *inMemoryTx) finish() {
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *inMemoryTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *inMemoryTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *inMemoryTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *inMemoryTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *inMemoryTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *inMemoryTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *inMemoryTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *inMemoryTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *inMemoryTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *inMemoryTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *inMemoryTx) Conn() *pgx.Conn                                               { return nil }
