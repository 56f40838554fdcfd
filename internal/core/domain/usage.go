package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIUsage is one row of the append-only usage ledger. Rows are immutable
// once written; rate-limit counts and usage statistics are derived from
// successful rows.
type APIUsage struct {
	ID               int64     `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	APIKeyID         *int64    `json:"api_key_id,omitempty"`
	Endpoint         string    `json:"endpoint"`
	Timestamp        time.Time `json:"timestamp"`
	TokensConsumed   float64   `json:"tokens_consumed"` // 0 for failed or non-billable calls
	RequestSize      int       `json:"request_size"`
	ResponseSize     int       `json:"response_size"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	Success          bool      `json:"success"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
}
