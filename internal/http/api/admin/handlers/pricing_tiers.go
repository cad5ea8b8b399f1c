package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brandforge/creditd/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PricingTierHandler manages admin CRUD endpoints for pricing tiers.
type PricingTierHandler struct {
	db *gorm.DB // Database handle for tier records.
}

// NewPricingTierHandler constructs a pricing tier handler.
func NewPricingTierHandler(db *gorm.DB) *PricingTierHandler {
	return &PricingTierHandler{db: db}
}

// createPricingTierRequest captures the payload for creating a tier.
type createPricingTierRequest struct {
	Provider       string `json:"provider"`         // AI provider identifier.
	Operation      string `json:"operation"`        // Metered operation name.
	CreditsPerUnit int64  `json:"credits_per_unit"` // Credit cost per unit.
	UnitName       string `json:"unit_name"`        // Billing unit label.
	IsActive       *bool  `json:"is_active"`        // Optional active flag.
}

// Create validates input and inserts a new pricing tier.
func (h *PricingTierHandler) Create(c *gin.Context) {
	var body createPricingTierRequest
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
	if body.CreditsPerUnit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits_per_unit must be positive"})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	now := time.Now().UTC()
	tier := models.PricingTier{
		Provider:       provider,
		Operation:      operation,
		CreditsPerUnit: body.CreditsPerUnit,
		UnitName:       strings.TrimSpace(body.UnitName),
		IsActive:       isActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&tier).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create pricing tier failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatTier(&tier))
}

// List returns all pricing tiers, optionally filtered by active flag.
func (h *PricingTierHandler) List(c *gin.Context) {
	activeQ := strings.TrimSpace(c.Query("is_active"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.PricingTier{})
	if activeQ != "" {
		if activeQ == "true" || activeQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if activeQ == "false" || activeQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}

	var rows []models.PricingTier
	if errFind := q.Order("provider ASC, operation ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list pricing tiers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatTier(&row))
	}
	c.JSON(http.StatusOK, gin.H{"pricing_tiers": out})
}

// Get fetches a pricing tier by ID.
func (h *PricingTierHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var tier models.PricingTier
	if errFind := h.db.WithContext(c.Request.Context()).First(&tier, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatTier(&tier))
}

// updatePricingTierRequest captures optional fields for tier updates.
type updatePricingTierRequest struct {
	Provider       *string `json:"provider"`         // Optional provider update.
	Operation      *string `json:"operation"`        // Optional operation update.
	CreditsPerUnit *int64  `json:"credits_per_unit"` // Optional cost update.
	UnitName       *string `json:"unit_name"`        // Optional unit label update.
	IsActive       *bool   `json:"is_active"`        // Optional active flag.
}

// Update validates and applies pricing tier field updates.
func (h *PricingTierHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updatePricingTierRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.PricingTier
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if body.Provider != nil {
		provider := strings.TrimSpace(*body.Provider)
		if provider == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provider cannot be empty"})
			return
		}
		updates["provider"] = provider
	}
	if body.Operation != nil {
		operation := strings.TrimSpace(*body.Operation)
		if operation == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "operation cannot be empty"})
			return
		}
		updates["operation"] = operation
	}
	if body.CreditsPerUnit != nil {
		if *body.CreditsPerUnit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credits_per_unit must be positive"})
			return
		}
		updates["credits_per_unit"] = *body.CreditsPerUnit
	}
	if body.UnitName != nil {
		updates["unit_name"] = strings.TrimSpace(*body.UnitName)
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.PricingTier{}).
		Where("id = ?", id).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update pricing tier failed"})
		return
	}

	var updated models.PricingTier
	if errFind := h.db.WithContext(c.Request.Context()).First(&updated, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatTier(&updated))
}

// Delete removes a pricing tier.
func (h *PricingTierHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.PricingTier{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete pricing tier failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Enable marks a pricing tier active.
func (h *PricingTierHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

// Disable marks a pricing tier inactive, blocking consumes priced by it.
func (h *PricingTierHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PricingTierHandler) setActive(c *gin.Context, active bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Model(&models.PricingTier{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update pricing tier failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": active})
}

// formatTier shapes a pricing tier API response.
func (h *PricingTierHandler) formatTier(tier *models.PricingTier) gin.H {
	return gin.H{
		"id":               tier.ID,
		"provider":         tier.Provider,
		"operation":        tier.Operation,
		"credits_per_unit": tier.CreditsPerUnit,
		"unit_name":        tier.UnitName,
		"is_active":        tier.IsActive,
		"created_at":       tier.CreatedAt,
		"updated_at":       tier.UpdatedAt,
	}
}
