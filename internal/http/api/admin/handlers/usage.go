package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/brandforge/creditd/internal/db"
	"github.com/brandforge/creditd/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// usageListDefaultLimit bounds usage listings when unspecified.
const (
	usageListDefaultLimit = 100
	usageListMaxLimit     = 1000
)

// UsageHandler serves admin usage-log listings.
type UsageHandler struct {
	db *gorm.DB
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB) *UsageHandler {
	return &UsageHandler{db: db}
}

// List returns usage logs, newest first, filterable by user, provider, and
// operation.
func (h *UsageHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.UsageLog{})

	if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if provider := strings.TrimSpace(c.Query("provider")); provider != "" {
		q = q.Where("provider = ?", provider)
	}
	if operation := strings.TrimSpace(c.Query("operation")); operation != "" {
		q = q.Where("operation = ?", operation)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(db.CaseInsensitiveLikeExpr(h.db, "user_id"), pattern)
	}

	limit := usageListDefaultLimit
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		parsed, errParse := strconv.Atoi(limitQ)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > usageListMaxLimit {
		limit = usageListMaxLimit
	}

	var rows []models.UsageLog
	if errFind := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list usage failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":             row.ID,
			"user_id":        row.UserID,
			"provider":       row.Provider,
			"operation":      row.Operation,
			"credits_used":   row.CreditsUsed,
			"transaction_id": row.TransactionID,
			"created_at":     row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"usage": out})
}
