package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/brandforge/creditd/internal/ledger"
	"github.com/brandforge/creditd/internal/metrics"
	"github.com/brandforge/creditd/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// grantTimeout bounds server-side grant processing on a detached context.
const grantTimeout = 10 * time.Second

// GrantHandler serves admin credit grant, bonus, and refund endpoints.
type GrantHandler struct {
	ledger *ledger.Manager
}

// NewGrantHandler constructs a GrantHandler.
func NewGrantHandler(ledgerMgr *ledger.Manager) *GrantHandler {
	return &GrantHandler{ledger: ledgerMgr}
}

// grantRequest captures the payload for admin-driven balance increases.
type grantRequest struct {
	Amount      int64          `json:"amount"`      // Credits to add, must be positive.
	Description string         `json:"description"` // Free-text reason.
	Metadata    map[string]any `json:"metadata"`    // Optional structured context.
}

// Grant adds purchased credits to a user's account.
func (h *GrantHandler) Grant(c *gin.Context) {
	h.apply(c, models.TransactionTypePurchase)
}

// Bonus adds promotional credits to a user's account.
func (h *GrantHandler) Bonus(c *gin.Context) {
	h.apply(c, models.TransactionTypeBonus)
}

// Refund returns previously consumed credits to a user's account.
func (h *GrantHandler) Refund(c *gin.Context) {
	h.apply(c, models.TransactionTypeRefund)
}

func (h *GrantHandler) apply(c *gin.Context, txType models.TransactionType) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	var body grantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), grantTimeout)
	defer cancel()

	var errApply error
	switch txType {
	case models.TransactionTypePurchase:
		errApply = h.ledger.AddCredits(ctx, userID, body.Amount, body.Description, body.Metadata)
	case models.TransactionTypeBonus:
		errApply = h.ledger.GiveBonusCredits(ctx, userID, body.Amount, body.Description)
	case models.TransactionTypeRefund:
		errApply = h.ledger.RefundCredits(ctx, userID, body.Amount, body.Description, body.Metadata)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unsupported grant type"})
		return
	}
	if errApply != nil {
		if errors.Is(errApply, ledger.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
		log.WithError(errApply).Warn("grants: apply failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}
	metrics.RecordGrant(string(txType), body.Amount)

	balance, errBalance := h.ledger.GetBalance(ctx, userID)
	if errBalance != nil {
		log.WithError(errBalance).Warn("grants: reload balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load balance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":    txType,
		"amount":  body.Amount,
		"balance": balance,
	})
}
