package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/service"
)

// WalletHandlers contains HTTP handlers for wallet linking
type WalletHandlers struct {
	walletService *service.WalletService
}

// NewWalletHandlers creates new wallet handlers
func NewWalletHandlers(walletService *service.WalletService) *WalletHandlers {
	return &WalletHandlers{walletService: walletService}
}

// Link binds a signed wallet to the caller's account
func (h *WalletHandlers) Link(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		respondError(c, core.ErrNotAuthenticated)
		return
	}

	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Network       string `json:"network"`
		Signature     string `json:"signature" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Label         string `json:"label"`
		ConsentGiven  bool   `json:"consentGiven"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	wallet, err := h.walletService.LinkWallet(c.Request.Context(), service.LinkRequest{
		UserID:       session.UserID,
		Address:      req.WalletAddress,
		Network:      req.Network,
		Signature:    req.Signature,
		Message:      req.Message,
		Label:        req.Label,
		ConsentGiven: req.ConsentGiven,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

// List returns the caller's wallets
func (h *WalletHandlers) List(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		respondError(c, core.ErrNotAuthenticated)
		return
	}

	wallets, err := h.walletService.ListWallets(c.Request.Context(), session.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if wallets == nil {
		wallets = []*core.UserWallet{}
	}

	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

// Remove unlinks one of the caller's wallets
func (h *WalletHandlers) Remove(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		respondError(c, core.ErrNotAuthenticated)
		return
	}

	if err := h.walletService.RemoveWallet(c.Request.Context(), session.UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// SetPrimary makes one of the caller's wallets the primary one
func (h *WalletHandlers) SetPrimary(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		respondError(c, core.ErrNotAuthenticated)
		return
	}

	wallet, err := h.walletService.SetPrimary(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}
