package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brandforge/creditd/internal/ledger"
	"github.com/brandforge/creditd/internal/metrics"
	"github.com/brandforge/creditd/internal/models"
	"github.com/brandforge/creditd/internal/pricing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// checkoutTimeout bounds server-side checkout processing on a detached context.
const checkoutTimeout = 10 * time.Second

// CatalogHandler serves the pricing catalog and package checkout.
type CatalogHandler struct {
	db      *gorm.DB
	ledger  *ledger.Manager
	pricing *pricing.Service
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(db *gorm.DB, ledgerMgr *ledger.Manager, pricingSvc *pricing.Service) *CatalogHandler {
	return &CatalogHandler{db: db, ledger: ledgerMgr, pricing: pricingSvc}
}

// Pricing lists active pricing tiers.
func (h *CatalogHandler) Pricing(c *gin.Context) {
	tiers, errList := h.pricing.ListTiers(c.Request.Context(), true)
	if errList != nil {
		log.WithError(errList).Warn("catalog: list tiers failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list pricing failed"})
		return
	}
	out := make([]gin.H, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, gin.H{
			"provider":         tier.Provider,
			"operation":        tier.Operation,
			"credits_per_unit": tier.CreditsPerUnit,
			"unit_name":        tier.UnitName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"pricing": out})
}

// Packages lists purchasable credit packages.
func (h *CatalogHandler) Packages(c *gin.Context) {
	rows, errList := h.pricing.ListPackages(c.Request.Context(), true)
	if errList != nil {
		log.WithError(errList).Warn("catalog: list packages failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list packages failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":             row.ID,
			"name":           row.Name,
			"credits_amount": row.CreditsAmount,
			"price_cents":    row.PriceCents,
			"currency":       row.Currency,
			"is_popular":     row.IsPopular,
		})
	}
	c.JSON(http.StatusOK, gin.H{"packages": out})
}

// Checkout grants a package's credits to the user. Payment capture lives
// outside this service; the caller is trusted to have settled it.
func (h *CatalogHandler) Checkout(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	packageID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var pkg models.CreditPackage
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_enabled = ?", packageID, true).
		First(&pkg).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		log.WithError(errFind).Warn("catalog: load package failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query package failed"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkoutTimeout)
	defer cancel()
	description := fmt.Sprintf("Purchased %s (%d credits)", pkg.Name, pkg.CreditsAmount)
	metadata := map[string]any{
		"package_id":  pkg.ID,
		"price_cents": pkg.PriceCents,
		"currency":    pkg.Currency,
	}
	if errAdd := h.ledger.AddCredits(ctx, userID, pkg.CreditsAmount, description, metadata); errAdd != nil {
		log.WithError(errAdd).Warn("catalog: checkout grant failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		return
	}
	metrics.RecordGrant(string(models.TransactionTypePurchase), pkg.CreditsAmount)

	balance, errBalance := h.ledger.GetBalance(ctx, userID)
	if errBalance != nil {
		log.WithError(errBalance).Warn("catalog: reload balance failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load balance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"granted": pkg.CreditsAmount,
		"balance": balance,
	})
}
