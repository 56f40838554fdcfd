package dto

import (
	"time"

	"scoring-gateway/internal/core/domain"
	"scoring-gateway/internal/core/ports"
)

// RegisterRequest is the request body for user registration. Password
// length is policed by the identity service so the error message matches
// the one the login surface documents.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// GenerateKeyRequest mints an API key with credential authentication in
// the body; no bearer key is needed to bootstrap the first key.
type GenerateKeyRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	Name          string `json:"name"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
}

// GenerateKeyResponse carries the plaintext key. This is the only time it
// is ever shown.
type GenerateKeyResponse struct {
	APIKey    string     `json:"api_key"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// KeyUsageResponse is one key in the my-keys listing. The key material
// itself never appears.
type KeyUsageResponse struct {
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// KeyListResponse wraps the my-keys listing.
type KeyListResponse struct {
	Keys []KeyUsageResponse `json:"keys"`
}

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// PurchaseTokensRequest is the request body for a token top-up. The
// optional reference id (an external order or receipt number) is stored
// on the ledger row as supplied.
type PurchaseTokensRequest struct {
	Amount        float64 `json:"amount" binding:"required"`
	PaymentMethod string  `json:"payment_method"`
	ReferenceID   string  `json:"reference_id"`
}

// PurchaseTokensResponse is the response body for a committed top-up.
type PurchaseTokensResponse struct {
	Message       string  `json:"message"`
	TokensAdded   float64 `json:"tokens_added"`
	NewBalance    float64 `json:"new_balance"`
	TransactionID string  `json:"transaction_id"`
}

// BalanceResponse is the response for the balance query.
type BalanceResponse struct {
	CurrentBalance float64 `json:"current_balance"`
	TotalPurchased float64 `json:"total_purchased"`
	TotalUsed      float64 `json:"total_used"`
	Username       string  `json:"username"`
}

// CreditScoreListRequest is the batch credit-scoring body. Cost scales
// with the number of applications.
type CreditScoreListRequest struct {
	Data []domain.LoanApplication `json:"data" binding:"required"`
}

// CreditScoreListResponse preserves positional alignment with the request.
type CreditScoreListResponse struct {
	Data []domain.ScoredLoan `json:"data"`
}

// PortfolioResponse pairs the selected positions with their summary.
type PortfolioResponse struct {
	Portfolio []ports.PortfolioPosition `json:"portfolio"`
	Summary   *ports.PortfolioSummary   `json:"summary"`
}

// PeakVoltageListRequest is the batch voltage-prediction body.
type PeakVoltageListRequest struct {
	Data         []domain.VoltageReading `json:"data" binding:"required"`
	ReturnScaled bool                    `json:"return_scaled"`
}

// PeakVoltageResponse echoes the reading with its prediction.
type PeakVoltageResponse struct {
	domain.VoltageReading
	UMax float64 `json:"U_max"`
}

// PeakVoltageListResponse preserves positional alignment with the request.
type PeakVoltageListResponse struct {
	Data []PeakVoltageResponse `json:"data"`
}
