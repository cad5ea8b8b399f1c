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

// PackageHandler manages admin CRUD endpoints for credit packages.
type PackageHandler struct {
	db *gorm.DB // Database handle for package records.
}

// NewPackageHandler constructs a package handler.
func NewPackageHandler(db *gorm.DB) *PackageHandler {
	return &PackageHandler{db: db}
}

// createPackageRequest captures the payload for creating a package.
type createPackageRequest struct {
	Name          string `json:"name"`           // Display name.
	CreditsAmount int64  `json:"credits_amount"` // Credits granted on purchase.
	PriceCents    int64  `json:"price_cents"`    // Price in minor currency units.
	Currency      string `json:"currency"`       // ISO currency code.
	IsPopular     bool   `json:"is_popular"`     // Storefront highlight flag.
	IsEnabled     *bool  `json:"is_enabled"`     // Optional enabled flag.
	SortOrder     int    `json:"sort_order"`     // Display order.
}

// Create validates input and inserts a new credit package.
func (h *PackageHandler) Create(c *gin.Context) {
	var body createPackageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.CreditsAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits_amount must be positive"})
		return
	}
	if body.PriceCents < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_cents cannot be negative"})
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = "USD"
	}
	isEnabled := true
	if body.IsEnabled != nil {
		isEnabled = *body.IsEnabled
	}

	now := time.Now().UTC()
	pkg := models.CreditPackage{
		Name:          name,
		CreditsAmount: body.CreditsAmount,
		PriceCents:    body.PriceCents,
		Currency:      currency,
		IsPopular:     body.IsPopular,
		IsEnabled:     isEnabled,
		SortOrder:     body.SortOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&pkg).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create package failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatPackage(&pkg))
}

// List returns all credit packages, optionally filtered by enabled flag.
func (h *PackageHandler) List(c *gin.Context) {
	enabledQ := strings.TrimSpace(c.Query("is_enabled"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.CreditPackage{})
	if enabledQ != "" {
		if enabledQ == "true" || enabledQ == "1" {
			q = q.Where("is_enabled = ?", true)
		} else if enabledQ == "false" || enabledQ == "0" {
			q = q.Where("is_enabled = ?", false)
		}
	}

	var rows []models.CreditPackage
	if errFind := q.Order("sort_order ASC, created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list packages failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.formatPackage(&row))
	}
	c.JSON(http.StatusOK, gin.H{"packages": out})
}

// updatePackageRequest captures optional fields for package updates.
type updatePackageRequest struct {
	Name          *string `json:"name"`           // Optional name update.
	CreditsAmount *int64  `json:"credits_amount"` // Optional credits update.
	PriceCents    *int64  `json:"price_cents"`    // Optional price update.
	Currency      *string `json:"currency"`       // Optional currency update.
	IsPopular     *bool   `json:"is_popular"`     // Optional highlight flag.
	IsEnabled     *bool   `json:"is_enabled"`     // Optional enabled flag.
	SortOrder     *int    `json:"sort_order"`     // Optional display order.
}

// Update validates and applies package field updates.
func (h *PackageHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updatePackageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.CreditPackage
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
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.CreditsAmount != nil {
		if *body.CreditsAmount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credits_amount must be positive"})
			return
		}
		updates["credits_amount"] = *body.CreditsAmount
	}
	if body.PriceCents != nil {
		if *body.PriceCents < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price_cents cannot be negative"})
			return
		}
		updates["price_cents"] = *body.PriceCents
	}
	if body.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*body.Currency))
		if currency == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "currency cannot be empty"})
			return
		}
		updates["currency"] = currency
	}
	if body.IsPopular != nil {
		updates["is_popular"] = *body.IsPopular
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.CreditPackage{}).
		Where("id = ?", id).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update package failed"})
		return
	}

	var updated models.CreditPackage
	if errFind := h.db.WithContext(c.Request.Context()).First(&updated, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatPackage(&updated))
}

// Delete removes a credit package.
func (h *PackageHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.CreditPackage{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete package failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// formatPackage shapes a credit package API response.
func (h *PackageHandler) formatPackage(pkg *models.CreditPackage) gin.H {
	return gin.H{
		"id":             pkg.ID,
		"name":           pkg.Name,
		"credits_amount": pkg.CreditsAmount,
		"price_cents":    pkg.PriceCents,
		"currency":       pkg.Currency,
		"is_popular":     pkg.IsPopular,
		"is_enabled":     pkg.IsEnabled,
		"sort_order":     pkg.SortOrder,
		"created_at":     pkg.CreatedAt,
		"updated_at":     pkg.UpdatedAt,
	}
}
