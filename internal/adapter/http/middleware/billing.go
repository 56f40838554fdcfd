package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"scoring-gateway/config"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// bufferingWriter holds the handler's response back until the debit
// commits. WriteHeader and Write only record; flush replays both onto
// the real connection.
type bufferingWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func newBufferingWriter(w gin.ResponseWriter) *bufferingWriter {
	return &bufferingWriter{ResponseWriter: w, status: 200}
}

func (w *bufferingWriter) WriteHeader(status int) {
	w.status = status
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferingWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *bufferingWriter) Status() int {
	return w.status
}

func (w *bufferingWriter) Size() int {
	return w.body.Len()
}

func (w *bufferingWriter) Written() bool {
	return w.body.Len() > 0 || w.status != 200
}

func (w *bufferingWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	_, _ = w.ResponseWriter.Write(w.body.Bytes())
}

// Metering charges prepaid tokens for the scoring endpoints. The flow is
// quote (static cost table, batch paths scale with the body's "data"
// length), preflight against the live balance, dispatch with the response
// buffered, then debit inside one transaction — the debit is skipped and a
// failure row written instead when the handler answered non-2xx. The
// debit runs under a detached context so a client that hangs up after the
// work completed still pays for it.
func Metering(billing ports.BillingService, cfg config.BillingConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.AbortError(c, apperror.ErrMissingAPIKey())
			return
		}

		path := c.Request.URL.Path
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.AbortError(c, apperror.Validation("failed to read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		cost := quoteCost(cfg, path, bodyBytes)

		enough, err := billing.CheckSufficient(c.Request.Context(), principal.UserID, cost)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		if !enough {
			balance, berr := billing.Balance(c.Request.Context(), principal.UserID)
			if berr != nil {
				response.AbortError(c, berr)
				return
			}
			keyID := principal.APIKeyID
			rec := ports.FailureRecord{
				UserID:       principal.UserID,
				APIKeyID:     &keyID,
				Endpoint:     path,
				RequestSize:  len(bodyBytes),
				ErrorMessage: "Insufficient token balance",
			}
			if ferr := billing.RecordFailure(c.Request.Context(), rec); ferr != nil {
				log.Error().Err(ferr).Msg("failed to ledger rejected request")
			}
			response.AbortError(c, apperror.ErrInsufficientBalance(cost, balance))
			return
		}

		original := c.Writer
		buf := newBufferingWriter(original)
		c.Writer = buf
		start := time.Now()

		// A panicking handler must not leave the buffered writer in
		// place: the recovery middleware above needs the real one.
		defer func() {
			if r := recover(); r != nil {
				c.Writer = original
				panic(r)
			}
		}()

		c.Next()

		c.Writer = original
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

		if buf.status < 200 || buf.status >= 300 {
			keyID := principal.APIKeyID
			rec := ports.FailureRecord{
				UserID:           principal.UserID,
				APIKeyID:         &keyID,
				Endpoint:         path,
				RequestSize:      len(bodyBytes),
				ProcessingTimeMs: elapsedMs,
				ErrorMessage:     fmt.Sprintf("HTTP %d", buf.status),
			}
			if ferr := billing.RecordFailure(context.WithoutCancel(c.Request.Context()), rec); ferr != nil {
				log.Error().Err(ferr).Msg("failed to ledger failed request")
			}
			buf.flush()
			return
		}

		res, err := billing.Consume(context.WithoutCancel(c.Request.Context()), ports.ConsumeRequest{
			UserID:           principal.UserID,
			APIKeyID:         principal.APIKeyID,
			Endpoint:         path,
			Amount:           cost,
			RequestSize:      len(bodyBytes),
			ResponseSize:     buf.body.Len(),
			ProcessingTimeMs: elapsedMs,
		})
		if err != nil {
			// The work happened but the debit lost the balance race (or
			// the DB failed). The buffered result is discarded; the
			// client is told why instead.
			keyID := principal.APIKeyID
			rec := ports.FailureRecord{
				UserID:           principal.UserID,
				APIKeyID:         &keyID,
				Endpoint:         path,
				RequestSize:      len(bodyBytes),
				ProcessingTimeMs: elapsedMs,
				ErrorMessage:     "Debit failed after dispatch",
			}
			if ferr := billing.RecordFailure(context.WithoutCancel(c.Request.Context()), rec); ferr != nil {
				log.Error().Err(ferr).Msg("failed to ledger failed debit")
			}
			response.Error(c, err)
			return
		}

		tokensConsumed.WithLabelValues(path).Add(res.TokensConsumed)
		original.Header().Set("X-Tokens-Consumed", formatTokens(res.TokensConsumed))
		original.Header().Set("X-Remaining-Balance", formatTokens(res.RemainingBalance))
		original.Header().Set("X-Processing-Time-Ms", strconv.FormatFloat(elapsedMs, 'f', 2, 64))
		buf.flush()
	}
}

// quoteCost resolves the token price before dispatch. Batch endpoints
// charge unit cost per element of the body's "data" array; a body where
// "data" is missing or not an array falls back to the unit cost and is
// left for the handler's binding to reject.
func quoteCost(cfg config.BillingConfig, path string, body []byte) float64 {
	unit := cfg.CostFor(path)
	if !cfg.IsBatchPath(path) {
		return unit
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return unit
	}
	n := len(data.Array())
	if n < 1 {
		n = 1
	}
	return unit * float64(n)
}

func formatTokens(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
