package credit

import (
	"context"
	"math"
	"time"

	"scoring-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// Scorer implements ports.CreditScorer with a fixed logistic
// probability-of-default model. Coefficients are frozen at build time, so
// scoring is a deterministic pure function of the application.
type Scorer struct {
	pricing *PricingEngine
	now     func() time.Time
}

// NewScorer creates a credit scorer over the given pricing engine.
func NewScorer(pricing *PricingEngine) *Scorer {
	return &Scorer{pricing: pricing, now: time.Now}
}

// Logistic model coefficients. Missing features contribute nothing, which
// keeps an empty application near the intercept's baseline PD.
const (
	coefIntercept    = -2.60
	coefDTI          = 0.045  // per DTI point
	coefFico         = -0.012 // per FICO point above the 690 pivot
	coefRevolUtil    = 0.009  // per utilization point
	coefInq6m        = 0.18   // per recent inquiry
	coefDelinq       = 0.35   // per delinquency in 2 years
	coefPubRec       = 0.40   // per public record
	coefIncomeToLoan = -0.06  // per unit of annual income over loan amount

	ficoPivot = 690.0
)

// Score prices each application in order; the i-th offer corresponds to
// the i-th application.
func (s *Scorer) Score(ctx context.Context, apps []domain.LoanApplication) ([]domain.ScoredLoan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offers := make([]domain.ScoredLoan, len(apps))
	now := s.now().UTC()
	for i, app := range apps {
		loan := domain.ScoredLoan{
			ID:              uuid.New(),
			LoanApplication: app,
			PD:              s.probabilityOfDefault(&app),
			CreatedAt:       now,
		}
		s.pricing.Price(&loan)
		offers[i] = loan
	}
	return offers, nil
}

func (s *Scorer) probabilityOfDefault(app *domain.LoanApplication) float64 {
	z := coefIntercept

	if app.DTI != nil {
		z += coefDTI * *app.DTI
	}
	if fico := app.FicoMid(); fico > 0 {
		z += coefFico * (fico - ficoPivot)
	}
	if app.RevolUtil != nil {
		z += coefRevolUtil * *app.RevolUtil
	}
	if app.InqLast6Mths != nil {
		z += coefInq6m * float64(*app.InqLast6Mths)
	}
	if app.Delinq2Yrs != nil {
		z += coefDelinq * float64(*app.Delinq2Yrs)
	}
	if app.PubRec != nil {
		z += coefPubRec * float64(*app.PubRec)
	}
	if app.AnnualInc != nil && app.LoanAmnt != nil && *app.LoanAmnt > 0 {
		ratio := *app.AnnualInc / *app.LoanAmnt
		// Cap the income effect so extreme incomes cannot mask bad credit.
		if ratio > 10 {
			ratio = 10
		}
		z += coefIncomeToLoan * ratio
	}

	return 1.0 / (1.0 + math.Exp(-z))
}
