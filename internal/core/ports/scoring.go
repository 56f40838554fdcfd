package ports

import (
	"context"

	"scoring-gateway/internal/core/domain"
)

// CreditScorer prices loan applications. Implementations are deterministic
// pure functions of their inputs; the gateway does not reason about model
// internals.
type CreditScorer interface {
	// Score prices the applications in order: the i-th offer corresponds
	// to the i-th application.
	Score(ctx context.Context, apps []domain.LoanApplication) ([]domain.ScoredLoan, error)
}

// PortfolioConstraints bound a greedy portfolio selection.
type PortfolioConstraints struct {
	Budget    float64  `json:"budget"`
	NoteSize  float64  `json:"note_size"`
	MaxWeight float64  `json:"max_weight"`
	MinLoans  int      `json:"min_loans"`
	GradeCap  float64  `json:"grade_cap"`
	StateCap  *float64 `json:"state_cap,omitempty"` // nil disables the state cap
}

// PortfolioPosition is one selected offer with its sizing.
type PortfolioPosition struct {
	domain.ScoredLoan
	Units          int     `json:"units"`
	InvestedAmount float64 `json:"invested_amount"`
	Weight         float64 `json:"weight"`
}

// PortfolioSummary aggregates a selection.
type PortfolioSummary struct {
	TotalCost      float64        `json:"total_cost"`
	NLoans         int            `json:"n_loans"`
	Budget         float64        `json:"budget"`
	InvestedPct    float64        `json:"invested_pct"`
	WtdExpectedAPY *float64       `json:"wtd_expected_apy"`
	ByGrade        map[string]int `json:"by_grade,omitempty"`
	ByState        map[string]int `json:"by_state,omitempty"`
}

// PortfolioOptimizer selects a portfolio from a universe of scored offers.
type PortfolioOptimizer interface {
	Select(offers []domain.ScoredLoan, c PortfolioConstraints) ([]PortfolioPosition, *PortfolioSummary, error)
}

// VoltagePredictor estimates peak grid voltage for batches of readings.
// Responses preserve positional alignment with the input slice.
type VoltagePredictor interface {
	// Predict returns one u_max per reading. When returnScaled is true the
	// raw model output is returned; otherwise predictions are
	// inverse-transformed to volts.
	Predict(ctx context.Context, readings []domain.VoltageReading, returnScaled bool) ([]float64, error)
}
