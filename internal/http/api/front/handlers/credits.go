package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brandforge/creditd/internal/ledger"
	"github.com/brandforge/creditd/internal/metrics"
	"github.com/brandforge/creditd/internal/pricing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// consumeTimeout bounds server-side consume processing. The deduction runs on
// a detached context so a client hanging up mid-request cannot leave a
// half-finished charge.
const consumeTimeout = 10 * time.Second

// maxConsumeUnits caps the units on a single consume request. Unbounded units
// would overflow the int64 cost multiplication.
const maxConsumeUnits = 10000

// CreditHandler serves user-facing balance and consumption endpoints.
type CreditHandler struct {
	ledger  *ledger.Manager
	pricing *pricing.Service
}

// NewCreditHandler constructs a CreditHandler.
func NewCreditHandler(ledgerMgr *ledger.Manager, pricingSvc *pricing.Service) *CreditHandler {
	return &CreditHandler{ledger: ledgerMgr, pricing: pricingSvc}
}

// GetBalance returns the account triple, creating the account on first read.
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	balance, errBalance := h.ledger.GetBalance(c.Request.Context(), userID)
	if errBalance != nil {
		log.WithError(errBalance).Warn("credits: load balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load balance failed"})
		return
	}
	c.JSON(http.StatusOK, balance)
}

// consumeRequest captures one metered consumption request.
type consumeRequest struct {
	Provider  string         `json:"provider"`  // AI provider being metered.
	Operation string         `json:"operation"` // Operation being metered.
	Units     int64          `json:"units"`     // Billed units; defaults to 1.
	Metadata  map[string]any `json:"metadata"`  // Optional request context.
	Reference string         `json:"reference"` // Optional idempotency key.
}

// Consume prices the operation and deducts credits. Insufficient balance maps
// to 402; an unpriced operation maps to 404 and blocks the work.
func (h *CreditHandler) Consume(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	var body consumeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	provider := strings.TrimSpace(body.Provider)
	operation := strings.TrimSpace(body.Operation)
	if provider == "" || operation == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider and operation are required"})
		return
	}
	units := body.Units
	if units == 0 {
		units = 1
	}
	if units < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "units must be positive"})
		return
	}
	if units > maxConsumeUnits {
		c.JSON(http.StatusBadRequest, gin.H{"error": "units exceeds maximum"})
		return
	}

	costPerUnit, errCost := h.pricing.GetCost(c.Request.Context(), provider, operation)
	if errCost != nil {
		if errors.Is(errCost, pricing.ErrPricingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pricing for operation"})
			return
		}
		log.WithError(errCost).Warn("credits: pricing lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pricing lookup failed"})
		return
	}
	amount := costPerUnit * units

	ctx, cancel := context.WithTimeout(context.Background(), consumeTimeout)
	defer cancel()
	consumed, errConsume := h.ledger.ConsumeCredits(ctx, ledger.ConsumeParams{
		UserID:    userID,
		Amount:    amount,
		Provider:  provider,
		Operation: operation,
		Metadata:  body.Metadata,
		Reference: body.Reference,
	})
	if errConsume != nil {
		log.WithError(errConsume).Warn("credits: consume failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "consume failed"})
		return
	}
	metrics.RecordConsume(provider, operation, amount, consumed)

	balance, errBalance := h.ledger.GetBalance(ctx, userID)
	if errBalance != nil {
		log.WithError(errBalance).Warn("credits: reload balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load balance failed"})
		return
	}

	if !consumed {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    "insufficient credits",
			"required": amount,
			"balance":  balance.Balance,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"consumed": true,
		"amount":   amount,
		"balance":  balance,
	})
}

// Transactions lists the user's most recent ledger entries, newest first.
func (h *CreditHandler) Transactions(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	limit := 0
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		parsed, errParse := strconv.Atoi(limitQ)
		if errParse != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	rows, errFind := h.ledger.GetTransactionHistory(c.Request.Context(), userID, limit)
	if errFind != nil {
		log.WithError(errFind).Warn("credits: load transactions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load transactions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":            row.ID,
			"type":          row.Type,
			"amount":        row.Amount,
			"balance_after": row.BalanceAfter,
			"description":   row.Description,
			"reference":     row.Reference,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// UsageStats aggregates consumption over a trailing window of days.
func (h *CreditHandler) UsageStats(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	days := 0
	if daysQ := strings.TrimSpace(c.Query("days")); daysQ != "" {
		parsed, errParse := strconv.Atoi(daysQ)
		if errParse != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = parsed
	}

	stats, errStats := h.ledger.GetUsageStats(c.Request.Context(), userID, days)
	if errStats != nil {
		log.WithError(errStats).Warn("credits: load usage stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load usage stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
