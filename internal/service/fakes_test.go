package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory fakes for the repository ports. Mutexes keep them safe for the
// concurrency tests; error fields inject failures per method.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User

	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) add(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.add(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
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

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
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

func (r *fakeUserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, purchased, used float64) error {
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

type fakeKeyRepo struct {
	mu     sync.Mutex
	nextID int64
	keys   map[int64]*domain.APIKey

	createErr     error
	lastUsedErr   error
	deactivateErr error
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{keys: make(map[int64]*domain.APIKey)}
}

func (r *fakeKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	key.ID = r.nextID
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *fakeKeyRepo) GetByHash(ctx context.Context, hashedKey string) (*domain.APIKey, error) {
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

func (r *fakeKeyRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.APIKey
	for _, k := range r.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (r *fakeKeyRepo) UpdateLastUsed(ctx context.Context, id int64, at time.Time) error {
	if r.lastUsedErr != nil {
		return r.lastUsedErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return fmt.Errorf("key not found")
	}
	t := at
	k.LastUsed = &t
	return nil
}

func (r *fakeKeyRepo) Deactivate(ctx context.Context, id int64) error {
	if r.deactivateErr != nil {
		return r.deactivateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return fmt.Errorf("key not found")
	}
	k.IsActive = false
	return nil
}

func (r *fakeKeyRepo) DeactivateByName(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := false
	for _, k := range r.keys {
		if k.UserID == userID && k.Name == name && k.IsActive {
			k.IsActive = false
			revoked = true
		}
	}
	return revoked, nil
}

func (r *fakeKeyRepo) get(id int64) *domain.APIKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return nil
	}
	cp := *k
	return &cp
}

type fakeUsageRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*domain.APIUsage

	insertErr error
	countErr  error
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{}
}

func (r *fakeUsageRepo) Insert(ctx context.Context, usage *domain.APIUsage) error {
	return r.InsertTx(ctx, nil, usage)
}

func (r *fakeUsageRepo) InsertTx(ctx context.Context, tx pgx.Tx, usage *domain.APIUsage) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	usage.ID = r.nextID
	cp := *usage
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeUsageRepo) CountSuccessSince(ctx context.Context, userID uuid.UUID, apiKeyID *int64, since time.Time) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
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

func (r *fakeUsageRepo) AggregateSince(ctx context.Context, userID uuid.UUID, since time.Time) (*ports.UsageAggregates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := &ports.UsageAggregates{}
	byEndpoint := make(map[string]*ports.EndpointUsage)
	var order []string
	for _, row := range r.rows {
		if row.UserID != userID || !row.Success || row.Timestamp.Before(since) {
			continue
		}
		agg.TotalRequests++
		agg.TotalTokens += row.TokensConsumed
		e, ok := byEndpoint[row.Endpoint]
		if !ok {
			e = &ports.EndpointUsage{Endpoint: row.Endpoint}
			byEndpoint[row.Endpoint] = e
			order = append(order, row.Endpoint)
		}
		e.Requests++
		e.Tokens += row.TokensConsumed
	}
	for _, name := range order {
		agg.EndpointTotals = append(agg.EndpointTotals, *byEndpoint[name])
	}
	return agg, nil
}

// seed appends a successful usage row at the given timestamp.
func (r *fakeUsageRepo) seed(userID uuid.UUID, keyID int64, endpoint string, tokens float64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.rows = append(r.rows, &domain.APIUsage{
		ID:             r.nextID,
		UserID:         userID,
		APIKeyID:       &keyID,
		Endpoint:       endpoint,
		Timestamp:      at,
		TokensConsumed: tokens,
		Success:        true,
	})
}

type fakeTxnRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*domain.TokenTransaction

	insertErr error
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{}
}

func (r *fakeTxnRepo) InsertTx(ctx context.Context, tx pgx.Tx, txn *domain.TokenTransaction) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	txn.ID = r.nextID
	cp := *txn
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeTxnRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.TokenTransaction, error) {
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

// fakeTransactor serializes Begin..Commit/Rollback spans with a mutex, so
// transactional sections exclude each other like row locks do.
type fakeTransactor struct {
	mu       sync.Mutex
	beginErr error
}

func newFakeTransactor() *fakeTransactor {
	return &fakeTransactor{}
}

func (t *fakeTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if t.beginErr != nil {
		return nil, t.beginErr
	}
	t.mu.Lock()
	return &fakeTx{release: &t.mu}, nil
}

type fakeTx struct {
	release *sync.Mutex
	done    bool
}

func (t *fakeTx) finish() {
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *fakeTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                               { return nil }
