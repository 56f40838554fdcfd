package credit

import (
	"math"

	"scoring-gateway/internal/core/domain"
)

const defaultTermMonths = 36

// gradeBucket maps a half-open PD interval [Lo, Hi) to a grade and APR.
// A nil APR marks the bucket as uninvestable.
type gradeBucket struct {
	Lo, Hi float64
	Grade  domain.LoanGrade
	APR    *float64
}

func apr(v float64) *float64 { return &v }

// PricingConfig holds the PD-to-terms table.
type PricingConfig struct {
	Buckets    []gradeBucket
	FeeByGrade map[domain.LoanGrade]float64
}

// DefaultPricingConfig returns the standard grade ladder: A through F with
// rising APRs, REJECT above 40% PD.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Buckets: []gradeBucket{
			{0.00, 0.02, domain.GradeA, apr(0.06)},
			{0.02, 0.05, domain.GradeB, apr(0.08)},
			{0.05, 0.10, domain.GradeC, apr(0.11)},
			{0.10, 0.20, domain.GradeD, apr(0.145)},
			{0.20, 0.30, domain.GradeE, apr(0.18)},
			{0.30, 0.40, domain.GradeF, apr(0.22)},
			{0.40, 1.00, domain.GradeReject, nil},
		},
		FeeByGrade: map[domain.LoanGrade]float64{
			domain.GradeA: 0.01,
			domain.GradeB: 0.015,
			domain.GradeC: 0.02,
			domain.GradeD: 0.025,
			domain.GradeE: 0.03,
			domain.GradeF: 0.04,
		},
	}
}

// PricingEngine derives loan terms from a probability of default.
type PricingEngine struct {
	cfg PricingConfig
}

// NewPricingEngine creates a pricing engine; a zero-value config falls back
// to the default ladder.
func NewPricingEngine(cfg PricingConfig) *PricingEngine {
	if len(cfg.Buckets) == 0 {
		cfg = DefaultPricingConfig()
	}
	return &PricingEngine{cfg: cfg}
}

// AssignGradeAPR maps a PD to its grade and APR. PDs beyond every bucket
// (including exactly 1.0) reject.
func (e *PricingEngine) AssignGradeAPR(pd float64) (domain.LoanGrade, *float64) {
	for _, b := range e.cfg.Buckets {
		if pd >= b.Lo && pd < b.Hi {
			return b.Grade, b.APR
		}
	}
	return domain.GradeReject, nil
}

// MonthlyPayment computes the annuity payment for a principal at an annual
// rate over a number of months. A zero rate amortizes linearly.
func MonthlyPayment(principal, annualRate float64, months int) float64 {
	if months <= 0 || principal <= 0 {
		return 0
	}
	r := annualRate / 12.0
	if r <= 0 {
		return principal / float64(months)
	}
	pow := math.Pow(1+r, float64(months))
	return principal * (r * pow) / (pow - 1)
}

// Price fills the pricing fields of a scored loan in place from its PD:
// grade, APR, origination fee, monthly payment, and expected investor APY
// ((1-pd)*apr - fee). Rejected or amount-less offers keep nil terms.
func (e *PricingEngine) Price(loan *domain.ScoredLoan) {
	grade, gradeAPR := e.AssignGradeAPR(loan.PD)
	loan.Grade = grade

	if gradeAPR == nil || loan.LoanAmnt == nil || *loan.LoanAmnt <= 0 {
		loan.APR = nil
		loan.OriginationFee = nil
		loan.MonthlyPayment = nil
		loan.ExpectedInvestorAPY = nil
		return
	}

	fee := e.feeFor(grade)
	term := loan.Term.OrDefault(defaultTermMonths)
	payment := MonthlyPayment(*loan.LoanAmnt, *gradeAPR, term)
	apy := (1-loan.PD)*(*gradeAPR) - fee

	loan.APR = gradeAPR
	loan.OriginationFee = &fee
	loan.MonthlyPayment = &payment
	loan.ExpectedInvestorAPY = &apy
}

func (e *PricingEngine) feeFor(grade domain.LoanGrade) float64 {
	if fee, ok := e.cfg.FeeByGrade[grade]; ok {
		return fee
	}
	return 0.02
}
