package handler

import (
	"context"
	"time"

	"scoring-gateway/internal/adapter/http/dto"
	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBatchSize bounds a single scoring request.
const maxBatchSize = 1000

// portfolioUniverseLimit caps how many persisted offers the optimizer
// considers, newest first.
const portfolioUniverseLimit = 1000

// ScoringHandler serves the metered model endpoints. Billing and quota
// enforcement happen in middleware before these run.
type ScoringHandler struct {
	scorer    ports.CreditScorer
	optimizer ports.PortfolioOptimizer
	predictor ports.VoltagePredictor
	loanRepo  ports.LoanRepository
	timeout   time.Duration
	log       zerolog.Logger
}

// NewScoringHandler creates a new ScoringHandler.
func NewScoringHandler(
	scorer ports.CreditScorer,
	optimizer ports.PortfolioOptimizer,
	predictor ports.VoltagePredictor,
	loanRepo ports.LoanRepository,
	timeout time.Duration,
	log zerolog.Logger,
) *ScoringHandler {
	return &ScoringHandler{
		scorer:    scorer,
		optimizer: optimizer,
		predictor: predictor,
		loanRepo:  loanRepo,
		timeout:   timeout,
		log:       log,
	}
}

func (h *ScoringHandler) scoringContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// CreditScore handles POST /api/credit-score: one application in, one
// priced offer out.
func (h *ScoringHandler) CreditScore(c *gin.Context) {
	var app domain.LoanApplication
	if err := c.ShouldBindJSON(&app); err != nil {
		response.Error(c, apperror.Validation("Invalid loan application payload"))
		return
	}

	ctx, cancel := h.scoringContext(c)
	defer cancel()

	scored, err := h.scorer.Score(ctx, []domain.LoanApplication{app})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.persistOffers(ctx, scored)
	response.OK(c, scored[0])
}

// CreditScores handles POST /api/credit-scores: batch pricing with
// positional alignment.
func (h *ScoringHandler) CreditScores(c *gin.Context) {
	var req dto.CreditScoreListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("Request body must contain a non-empty 'data' array"))
		return
	}
	if len(req.Data) == 0 {
		response.Error(c, apperror.Validation("Request body must contain a non-empty 'data' array"))
		return
	}
	if len(req.Data) > maxBatchSize {
		response.Error(c, apperror.Validation("Batch size exceeds the maximum of 1000"))
		return
	}

	ctx, cancel := h.scoringContext(c)
	defer cancel()

	scored, err := h.scorer.Score(ctx, req.Data)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.persistOffers(ctx, scored)
	response.OK(c, dto.CreditScoreListResponse{Data: scored})
}

// OptimizePortfolio handles POST /api/optimize-portfolio. The universe is
// the persisted investable offers, newest first.
func (h *ScoringHandler) OptimizePortfolio(c *gin.Context) {
	var constraints ports.PortfolioConstraints
	if err := c.ShouldBindJSON(&constraints); err != nil {
		response.Error(c, apperror.Validation("Invalid portfolio constraints payload"))
		return
	}

	ctx, cancel := h.scoringContext(c)
	defer cancel()

	offers, err := h.loanRepo.ListInvestable(ctx, portfolioUniverseLimit)
	if err != nil {
		response.Error(c, apperror.ErrDatabase(err))
		return
	}

	positions, summary, err := h.optimizer.Select(offers, constraints)
	if err != nil {
		response.Error(c, err)
		return
	}
	if positions == nil {
		positions = []ports.PortfolioPosition{}
	}

	response.OK(c, dto.PortfolioResponse{Portfolio: positions, Summary: summary})
}

// PeakVoltages handles POST /api/peak-voltages: batch regression with
// positional alignment.
func (h *ScoringHandler) PeakVoltages(c *gin.Context) {
	var req dto.PeakVoltageListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("Request body must contain a non-empty 'data' array"))
		return
	}
	if len(req.Data) == 0 {
		response.Error(c, apperror.Validation("Request body must contain a non-empty 'data' array"))
		return
	}
	if len(req.Data) > maxBatchSize {
		response.Error(c, apperror.Validation("Batch size exceeds the maximum of 1000"))
		return
	}

	ctx, cancel := h.scoringContext(c)
	defer cancel()

	predictions, err := h.predictor.Predict(ctx, req.Data, req.ReturnScaled)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.PeakVoltageResponse, 0, len(req.Data))
	for i, reading := range req.Data {
		out = append(out, dto.PeakVoltageResponse{
			VoltageReading: reading,
			UMax:           predictions[i],
		})
	}
	response.OK(c, dto.PeakVoltageListResponse{Data: out})
}

// persistOffers appends scored offers to the investable universe. Scoring
// stays available when the write fails; the offer just never becomes part
// of a portfolio.
func (h *ScoringHandler) persistOffers(ctx context.Context, offers []domain.ScoredLoan) {
	for i := range offers {
		if err := h.loanRepo.Insert(ctx, &offers[i]); err != nil {
			h.log.Error().Err(err).Str("loan_id", offers[i].ID.String()).Msg("failed to persist scored offer")
			return
		}
	}
}
