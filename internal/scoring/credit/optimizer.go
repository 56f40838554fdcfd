package credit

import (
	"math"
	"sort"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
)

// Optimizer implements ports.PortfolioOptimizer with a greedy selection:
// offers sorted by expected investor APY descending, bought in fixed-size
// notes while the budget, per-loan weight cap, and concentration caps hold.
type Optimizer struct{}

// NewOptimizer creates a greedy portfolio optimizer.
func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

// Select builds a portfolio from the offer universe under the constraints.
func (o *Optimizer) Select(offers []domain.ScoredLoan, c ports.PortfolioConstraints) ([]ports.PortfolioPosition, *ports.PortfolioSummary, error) {
	if c.Budget <= 0 || c.NoteSize <= 0 {
		return nil, nil, apperror.Validation("budget and note_size must be positive")
	}

	universe := make([]domain.ScoredLoan, 0, len(offers))
	for _, offer := range offers {
		if offer.Investable() {
			universe = append(universe, offer)
		}
	}
	sort.SliceStable(universe, func(i, j int) bool {
		return *universe[i].ExpectedInvestorAPY > *universe[j].ExpectedInvestorAPY
	})

	maxUnitsEach := int(c.MaxWeight * c.Budget / c.NoteSize)
	if maxUnitsEach < 1 {
		maxUnitsEach = 1
	}

	var (
		selected      []ports.PortfolioPosition
		totalCost     float64
		countsByGrade = map[string]int{}
		countsByState = map[string]int{}
	)

	unitsLeft := func() int {
		return int((c.Budget - totalCost) / c.NoteSize)
	}

	for _, offer := range universe {
		if unitsLeft() <= 0 {
			break
		}
		if !capOK(len(selected), &offer, c, countsByGrade, countsByState) {
			continue
		}

		units := maxUnitsEach
		if afford := unitsLeft(); afford < units {
			units = afford
		}
		if units <= 0 {
			continue
		}

		invested := float64(units) * c.NoteSize
		selected = append(selected, ports.PortfolioPosition{
			ScoredLoan:     offer,
			Units:          units,
			InvestedAmount: invested,
		})
		totalCost += invested
		countsByGrade[string(offer.Grade)]++
		countsByState[offer.State()]++

		if len(selected) >= c.MinLoans && unitsLeft() == 0 {
			break
		}
	}

	summary := &ports.PortfolioSummary{
		TotalCost:   round2(totalCost),
		NLoans:      len(selected),
		Budget:      c.Budget,
		InvestedPct: round4(totalCost / c.Budget),
	}
	if len(selected) == 0 {
		return []ports.PortfolioPosition{}, summary, nil
	}

	var wtdAPY float64
	for i := range selected {
		selected[i].Weight = selected[i].InvestedAmount / c.Budget
		wtdAPY += *selected[i].ExpectedInvestorAPY * selected[i].InvestedAmount
	}
	wtdAPY /= totalCost
	summary.WtdExpectedAPY = &wtdAPY
	summary.ByGrade = countsByGrade
	summary.ByState = countsByState

	return selected, summary, nil
}

// capOK applies ceiling-based concentration caps so the first pick is
// always allowed and small portfolios are not starved.
func capOK(nSelected int, offer *domain.ScoredLoan, c ports.PortfolioConstraints, byGrade, byState map[string]int) bool {
	nAfter := nSelected + 1
	if nAfter <= 1 {
		return true
	}

	if c.GradeCap > 0 {
		maxAllowed := int(math.Ceil(c.GradeCap * float64(nAfter)))
		if byGrade[string(offer.Grade)]+1 > maxAllowed {
			return false
		}
	}
	if c.StateCap != nil {
		maxAllowed := int(math.Ceil(*c.StateCap * float64(nAfter)))
		if byState[offer.State()]+1 > maxAllowed {
			return false
		}
	}
	return true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
