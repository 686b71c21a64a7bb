package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

func tokenResponse(tokens *service.Tokens) gin.H {
	return gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"tokenType":    "Bearer",
		"expiresIn":    int64(tokens.ExpiresIn / time.Second),
		"user":         tokens.User,
	}
}

// Challenge issues a signing challenge for a wallet address
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenge": gin.H{
			"id":        challenge.ID,
			"message":   challenge.Message,
			"nonce":     challenge.Nonce,
			"expiresAt": challenge.ExpiresAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// Verify checks a signed challenge and opens a session for the wallet
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Nonce         string `json:"nonce" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	tokens, err := h.authService.VerifyWallet(c.Request.Context(), req.WalletAddress, req.Signature, req.Message, req.Nonce)
	if err != nil {
		status, message := statusFor(err)
		c.AbortWithStatusJSON(status, gin.H{"success": false, "verified": false, "message": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified":      true,
		"walletAddress": tokens.WalletAddress,
		"session":       tokenResponse(tokens),
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse(tokens))
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	switch {
	case err == nil, errors.Is(err, core.ErrTokenExpired):
		// An expired token is as good as logged out
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	case errors.Is(err, core.ErrInvalidToken):
		c.AbortWithStatusJSON(http.StatusBadRequest, failure("invalid refresh token"))
	default:
		respondError(c, err)
	}
}

// Session returns the server-validated user of the bearer token
func (h *AuthHandlers) Session(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		respondError(c, core.ErrNotAuthenticated)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          session.User(),
		"walletAddress": session.WalletAddress,
		"expiresAt":     session.AccessExpiry.Unix(),
	})
}
