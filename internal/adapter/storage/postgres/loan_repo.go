package postgres

import (
	"context"
	"fmt"

	"scoring-gateway/internal/core/domain"
)

// LoanRepo implements ports.LoanRepository over the credit_scores table.
// Each row is one priced loan offer; the optimizer reads the investable
// slice back.
type LoanRepo struct {
	pool Pool
}

// NewLoanRepo creates a new LoanRepo.
func NewLoanRepo(pool Pool) *LoanRepo {
	return &LoanRepo{pool: pool}
}

// Insert persists a scored offer.
func (r *LoanRepo) Insert(ctx context.Context, l *domain.ScoredLoan) error {
	query := `INSERT INTO credit_scores (id, loan_amnt, term_months, addr_state, annual_inc, dti,
			fico_range_low, fico_range_high, revol_util, inq_last_6mths, delinq_2yrs, pub_rec,
			pd, grade, apr, origination_fee, monthly_payment, expected_investor_apy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	var term *int
	if l.Term > 0 {
		v := int(l.Term)
		term = &v
	}

	_, err := r.pool.Exec(ctx, query,
		l.ID, l.LoanAmnt, term, l.AddrState, l.AnnualInc, l.DTI,
		l.FicoRangeLow, l.FicoRangeHigh, l.RevolUtil, l.InqLast6Mths, l.Delinq2Yrs, l.PubRec,
		l.PD, l.Grade, l.APR, l.OriginationFee, l.MonthlyPayment, l.ExpectedInvestorAPY, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scored loan: %w", err)
	}
	return nil
}

// ListInvestable returns offers with a non-null APR, newest first.
func (r *LoanRepo) ListInvestable(ctx context.Context, limit int) ([]domain.ScoredLoan, error) {
	query := `SELECT id, loan_amnt, term_months, addr_state, annual_inc, dti,
			fico_range_low, fico_range_high, revol_util, inq_last_6mths, delinq_2yrs, pub_rec,
			pd, grade, apr, origination_fee, monthly_payment, expected_investor_apy, created_at
		FROM credit_scores
		WHERE apr IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list investable loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.ScoredLoan
	for rows.Next() {
		l := domain.ScoredLoan{}
		var term *int
		if err := rows.Scan(
			&l.ID, &l.LoanAmnt, &term, &l.AddrState, &l.AnnualInc, &l.DTI,
			&l.FicoRangeLow, &l.FicoRangeHigh, &l.RevolUtil, &l.InqLast6Mths, &l.Delinq2Yrs, &l.PubRec,
			&l.PD, &l.Grade, &l.APR, &l.OriginationFee, &l.MonthlyPayment, &l.ExpectedInvestorAPY, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scored loan: %w", err)
		}
		if term != nil {
			l.Term = domain.TermMonths(*term)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scored loans: %w", err)
	}
	return loans, nil
}
