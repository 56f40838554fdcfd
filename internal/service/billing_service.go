package service

import (
	"context"
	"fmt"
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BillingServiceImpl implements ports.BillingService. All balance
// mutations run under a SELECT ... FOR UPDATE lock on the user row, so
// debits and credits of one user serialize and no two of them observe the
// same previous balance.
type BillingServiceImpl struct {
	userRepo   ports.UserRepository
	usageRepo  ports.UsageRepository
	txnRepo    ports.TokenTransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewBillingService creates a new BillingServiceImpl.
func NewBillingService(
	userRepo ports.UserRepository,
	usageRepo ports.UsageRepository,
	txnRepo ports.TokenTransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *BillingServiceImpl {
	return &BillingServiceImpl{
		userRepo:   userRepo,
		usageRepo:  usageRepo,
		txnRepo:    txnRepo,
		transactor: transactor,
		log:        log,
	}
}

// Balance returns the user's current token balance.
func (s *BillingServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	user, err := s.Account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.TokenBalance, nil
}

// Account returns the user record behind a balance.
func (s *BillingServiceImpl) Account(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	return user, nil
}

// CheckSufficient reports whether the balance covers the needed amount.
// This is the preflight only; Consume re-checks under the row lock.
func (s *BillingServiceImpl) CheckSufficient(ctx context.Context, userID uuid.UUID, need float64) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= need, nil
}

// Consume debits the balance and appends the usage and transaction
// ledgers in a single transaction. The balance is re-read under the row
// lock; a shortfall here fails with PaymentRequired even when an earlier
// preflight passed — that is the balance race losing, not a bug.
func (s *BillingServiceImpl) Consume(ctx context.Context, req ports.ConsumeRequest) (*ports.ConsumeResult, error) {
	if req.Amount < 0 {
		return nil, apperror.Validation("consume amount must be non-negative")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("lock user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}

	if user.TokenBalance < req.Amount {
		return nil, apperror.ErrInsufficientBalance(req.Amount, user.TokenBalance)
	}

	newBalance := user.TokenBalance - req.Amount
	newUsed := user.TotalUsed + req.Amount
	if err := s.userRepo.UpdateBalances(ctx, dbTx, user.ID, newBalance, user.TotalPurchased, newUsed); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("update balances: %w", err))
	}

	now := time.Now().UTC()
	keyID := req.APIKeyID
	usage := &domain.APIUsage{
		UserID:           req.UserID,
		APIKeyID:         &keyID,
		Endpoint:         req.Endpoint,
		Timestamp:        now,
		TokensConsumed:   req.Amount,
		RequestSize:      req.RequestSize,
		ResponseSize:     req.ResponseSize,
		ProcessingTimeMs: req.ProcessingTimeMs,
		Success:          true,
	}
	if err := s.usageRepo.InsertTx(ctx, dbTx, usage); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("insert usage: %w", err))
	}

	// The transaction row references the usage row it paid for; failed
	// usage rows therefore never have a matching usage-type transaction.
	ref := fmt.Sprintf("usage-%d", usage.ID)
	txn := &domain.TokenTransaction{
		UserID:          req.UserID,
		TransactionType: domain.TransactionTypeUsage,
		Amount:          -req.Amount,
		PreviousBalance: user.TokenBalance,
		NewBalance:      newBalance,
		Timestamp:       now,
		Description:     fmt.Sprintf("API call to %s", req.Endpoint),
		ReferenceID:     &ref,
	}
	if err := s.txnRepo.InsertTx(ctx, dbTx, txn); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("insert transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("commit debit: %w", err))
	}

	s.log.Debug().
		Str("user_id", req.UserID.String()).
		Str("endpoint", req.Endpoint).
		Float64("tokens", req.Amount).
		Float64("remaining", newBalance).
		Msg("tokens consumed")

	return &ports.ConsumeResult{
		TokensConsumed:   req.Amount,
		RemainingBalance: newBalance,
	}, nil
}

// RecordFailure appends a failed usage row. No balance mutation happens,
// so the row is written outside any debit transaction.
func (s *BillingServiceImpl) RecordFailure(ctx context.Context, rec ports.FailureRecord) error {
	msg := rec.ErrorMessage
	usage := &domain.APIUsage{
		UserID:           rec.UserID,
		APIKeyID:         rec.APIKeyID,
		Endpoint:         rec.Endpoint,
		Timestamp:        time.Now().UTC(),
		TokensConsumed:   0,
		RequestSize:      rec.RequestSize,
		ProcessingTimeMs: rec.ProcessingTimeMs,
		Success:          false,
		ErrorMessage:     &msg,
	}
	if err := s.usageRepo.Insert(ctx, usage); err != nil {
		return apperror.ErrDatabase(fmt.Errorf("insert failure row: %w", err))
	}
	return nil
}

// Credit adds tokens to the balance under the same locking discipline as
// Consume. Purchases also grow total_tokens_purchased. Reference ids are
// recorded as-is; repeated references are not deduplicated.
func (s *BillingServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (*ports.CreditResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("credit amount must be positive")
	}
	if !req.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction type %q", req.Type))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("lock user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}

	newBalance := user.TokenBalance + req.Amount
	newPurchased := user.TotalPurchased
	if req.Type == domain.TransactionTypePurchase {
		newPurchased += req.Amount
	}
	if err := s.userRepo.UpdateBalances(ctx, dbTx, user.ID, newBalance, newPurchased, user.TotalUsed); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("update balances: %w", err))
	}

	txn := &domain.TokenTransaction{
		UserID:          req.UserID,
		TransactionType: req.Type,
		Amount:          req.Amount,
		PreviousBalance: user.TokenBalance,
		NewBalance:      newBalance,
		Timestamp:       time.Now().UTC(),
		Description:     req.Description,
	}
	if req.ReferenceID != "" {
		ref := req.ReferenceID
		txn.ReferenceID = &ref
	}
	if err := s.txnRepo.InsertTx(ctx, dbTx, txn); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("insert transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("commit credit: %w", err))
	}

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("type", string(req.Type)).
		Float64("amount", req.Amount).
		Float64("new_balance", newBalance).
		Msg("tokens credited")

	return &ports.CreditResult{
		TokensAdded:   req.Amount,
		NewBalance:    newBalance,
		TransactionID: txn.ID,
	}, nil
}

// UsageStats aggregates successful usage rows over the trailing period.
func (s *BillingServiceImpl) UsageStats(ctx context.Context, userID uuid.UUID, days int) (*ports.UsageStats, error) {
	if days < 1 || days > 365 {
		return nil, apperror.Validation("days must be between 1 and 365")
	}

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	agg, err := s.usageRepo.AggregateSince(ctx, userID, since)
	if err != nil {
		return nil, apperror.ErrDatabase(fmt.Errorf("aggregate usage: %w", err))
	}

	stats := &ports.UsageStats{
		PeriodDays:          days,
		CurrentBalance:      balance,
		TotalRequests:       agg.TotalRequests,
		TotalTokensConsumed: agg.TotalTokens,
		EndpointBreakdown:   agg.EndpointTotals,
	}
	if stats.EndpointBreakdown == nil {
		stats.EndpointBreakdown = []ports.EndpointUsage{}
	}
	return stats, nil
}
