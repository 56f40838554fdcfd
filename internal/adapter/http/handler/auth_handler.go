package handler

import (
	"fmt"
	"net/http"

	"scoring-gateway/internal/adapter/http/dto"
	"scoring-gateway/internal/adapter/http/middleware"
	"scoring-gateway/internal/core/ports"
	"scoring-gateway/pkg/apperror"
	"scoring-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthHandler serves registration, login, and the API key lifecycle.
type AuthHandler struct {
	identity ports.IdentityService
	log      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(identity ports.IdentityService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, log: log}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("Invalid registration payload"))
		return
	}
	dto.SanitizeStruct(&req)

	user, err := h.identity.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RegisterResponse{
		Message:  "User registered successfully",
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	})
}

// Login handles POST /auth/login. It verifies credentials only; API access
// itself always goes through a bearer key.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("Username and password are required"))
		return
	}
	dto.SanitizeStruct(&req)

	user, err := h.identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Message:  "Login successful",
		UserID:   user.ID.String(),
		Username: user.Username,
	})
}

// GenerateKey handles POST /auth/generate-key. Credentials travel in the
// body so the first key can be minted without any existing key.
func (h *AuthHandler) GenerateKey(c *gin.Context) {
	var req dto.GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("Username and password are required"))
		return
	}
	dto.SanitizeStruct(&req)

	user, err := h.identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "Default API Key"
	}

	plaintext, key, err := h.identity.GenerateKey(c.Request.Context(), user, name, req.ExpiresInDays)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.GenerateKeyResponse{
		APIKey:    plaintext,
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
		ExpiresAt: key.ExpiresAt,
	})
}

// MyKeys handles GET /auth/my-keys. The key material itself is never
// listed, only metadata.
func (h *AuthHandler) MyKeys(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return
	}

	keys, err := h.identity.ListKeys(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(keys) == 0 {
		response.Error(c, apperror.New("BILL_002", "No API keys found for the current user.", http.StatusNotFound))
		return
	}

	out := make([]dto.KeyUsageResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, dto.KeyUsageResponse{
			Name:      k.Name,
			CreatedAt: k.CreatedAt,
			LastUsed:  k.LastUsed,
			IsActive:  k.IsActive,
		})
	}
	response.OK(c, dto.KeyListResponse{Keys: out})
}

// RevokeKey handles DELETE /auth/revoke-key/:name.
func (h *AuthHandler) RevokeKey(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingAPIKey())
		return
	}

	name := c.Param("name")
	if err := h.identity.RevokeKey(c.Request.Context(), principal.UserID, name); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{
		Message: fmt.Sprintf("API key '%s' revoked successfully", name),
	})
}
