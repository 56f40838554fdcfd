package integration

import (
	"net/http"
	"sync"
	"testing"

	"scoring-gateway/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Twenty concurrent unit-cost calls against a balance of ten: exactly ten
// debits may commit, and the balance must land on zero with no overdraft.
func TestConcurrentDebits(t *testing.T) {
	e := newEnv(t, defaultLimits())
	key := e.signup(t, "alice")

	// Shrink the grant to force the race.
	user, err := e.userRepo.GetByUsername(t.Context(), "alice")
	require.NoError(t, err)
	require.NoError(t, e.userRepo.UpdateBalances(t.Context(), nil, user.ID, 10, user.TotalPurchased, user.TotalUsed))

	const workers = 20
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := e.do(http.MethodPost, "/api/credit-score", key, sampleApplication)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	ok, rejected := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusPaymentRequired:
			rejected++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, rejected)

	user, err = e.userRepo.GetByUsername(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0.0, user.TokenBalance)
	assert.Equal(t, 10.0, user.TotalUsed)

	// Every committed debit left exactly one usage-type ledger row.
	txns, err := e.txnRepo.ListByUser(t.Context(), user.ID, 100)
	require.NoError(t, err)
	debits := 0
	for _, txn := range txns {
		if txn.TransactionType == domain.TransactionTypeUsage {
			debits++
			assert.Equal(t, -1.0, txn.Amount)
		}
	}
	assert.Equal(t, 10, debits)
}

// Credits and debits interleaving concurrently must keep the balance
// consistent with the ledger sum.
func TestConcurrentCreditsAndDebits(t *testing.T) {
	e := newEnv(t, defaultLimits())
	key := e.signup(t, "alice")

	const rounds = 10
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			e.do(http.MethodPost, "/billing/purchase-tokens", key, map[string]interface{}{"amount": 5.0})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			e.do(http.MethodPost, "/api/credit-score", key, sampleApplication)
		}
	}()
	wg.Wait()

	user, err := e.userRepo.GetByUsername(t.Context(), "alice")
	require.NoError(t, err)

	txns, err := e.txnRepo.ListByUser(t.Context(), user.ID, 1000)
	require.NoError(t, err)

	// Replaying the ledger from the signup grant must reproduce the
	// stored balance exactly.
	balance := 100.0
	for _, txn := range txns {
		balance += txn.Amount
	}
	assert.Equal(t, balance, user.TokenBalance)
	assert.Equal(t, 100.0+float64(rounds)*5.0, user.TotalPurchased)
}
