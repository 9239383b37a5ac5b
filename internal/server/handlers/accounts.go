package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
)

// AccountsHandler serves the account administration endpoints.
type AccountsHandler struct {
	accounts *account.Manager
}

// NewAccountsHandler creates an AccountsHandler.
func NewAccountsHandler(accounts *account.Manager) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

// Status returns the pool snapshot with active rate limits.
func (h *AccountsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.accounts.Status())
}

// Remove deletes one account by email.
func (h *AccountsHandler) Remove(c *gin.Context) {
	email := c.Param("email")
	removed, err := h.accounts.Remove(email)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "api_error", "Removing account: "+err.Error())
		return
	}
	if !removed {
		sendError(c, http.StatusNotFound, "not_found_error", "No account with email "+email)
		return
	}
	utils.Info("removed account %s", email)
	c.JSON(http.StatusOK, gin.H{"removed": email})
}

// ResetLimits clears the rate-limit ledger.
func (h *AccountsHandler) ResetLimits(c *gin.Context) {
	h.accounts.ResetRateLimits()
	utils.Info("rate-limit ledger cleared by request")
	c.JSON(http.StatusOK, gin.H{"reset": true})
}
