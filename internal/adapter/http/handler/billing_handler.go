package handler

import (
	"fmt"
	"strconv"

	"scoring-gateway/internal/adapter/http/dto"
	"scoring-gateway/internal/adapter/http/middleware"
	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxPurchaseTokens caps a single top-up.
const maxPurchaseTokens = 10000.0

// BillingHandler serves balance reads, purchases, and usage reporting.
type BillingHandler struct {
	billing ports.BillingService
	limiter ports.RateLimitService
	log     zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing ports.BillingService, limiter ports.RateLimitService, log zerolog.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, limiter: limiter, log: log}
}

// PurchaseTokens handles POST /billing/purchase-tokens. Payment capture is
// out of scope; any purchase is credited as if settled.
func (h *BillingHandler) PurchaseTokens(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return
	}

	var req dto.PurchaseTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("Token amount must be positive"))
		return
	}
	if req.Amount <= 0 {
		response.Error(c, apperror.Validation("Token amount must be positive"))
		return
	}
	if req.Amount > maxPurchaseTokens {
		response.Error(c, apperror.Validation("Maximum token purchase is 10,000 tokens"))
		return
	}

	method := req.PaymentMethod
	if method == "" {
		method = "credit_card"
	}

	res, err := h.billing.Credit(c.Request.Context(), ports.CreditRequest{
		UserID:      principal.UserID,
		Amount:      req.Amount,
		Type:        domain.TransactionTypePurchase,
		Description: fmt.Sprintf("Token purchase via %s", method),
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PurchaseTokensResponse{
		Message:       "Tokens purchased successfully",
		TokensAdded:   res.TokensAdded,
		NewBalance:    res.NewBalance,
		TransactionID: fmt.Sprintf("txn_%d", res.TransactionID),
	})
}

// Balance handles GET /billing/balance.
func (h *BillingHandler) Balance(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return
	}

	user, err := h.billing.Account(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		CurrentBalance: user.TokenBalance,
		TotalPurchased: user.TotalPurchased,
		TotalUsed:      user.TotalUsed,
		Username:       user.Username,
	})
}

// UsageStats handles GET /billing/usage-stats?days=N.
func (h *BillingHandler) UsageStats(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, apperror.Validation("days must be an integer"))
			return
		}
		days = parsed
	}

	stats, err := h.billing.UsageStats(c.Request.Context(), principal.UserID, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// RateLimitStatus handles GET /billing/rate-limit-status.
func (h *BillingHandler) RateLimitStatus(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return
	}

	status, err := h.limiter.Status(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}
