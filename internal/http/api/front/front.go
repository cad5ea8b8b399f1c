// Package front registers the user-facing credit API.
package front

import (
	"net/http"
	"strings"

	handlers "github.com/brandforge/creditd/internal/http/api/front/handlers"
	"github.com/brandforge/creditd/internal/ledger"
	"github.com/brandforge/creditd/internal/pricing"
	"github.com/brandforge/creditd/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers user-facing routes and handlers.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, ledgerMgr *ledger.Manager, pricingSvc *pricing.Service, limiter *ratelimit.Manager) {
	if r == nil || db == nil {
		return
	}

	creditHandler := handlers.NewCreditHandler(ledgerMgr, pricingSvc)
	catalogHandler := handlers.NewCatalogHandler(db, ledgerMgr, pricingSvc)

	frontGroup := r.Group("/v0")
	frontGroup.GET("/pricing", catalogHandler.Pricing)
	frontGroup.GET("/packages", catalogHandler.Packages)

	users := frontGroup.Group("/users/:user_id")
	users.GET("/credits", creditHandler.GetBalance)
	users.POST("/credits/consume", consumeRateLimitMiddleware(limiter), creditHandler.Consume)
	users.GET("/credits/transactions", creditHandler.Transactions)
	users.GET("/credits/usage-stats", creditHandler.UsageStats)
	users.POST("/packages/:id/checkout", catalogHandler.Checkout)
}

// consumeRateLimitMiddleware applies the per-user consume budget before the
// handler runs. Limiter backend errors fail open inside the manager.
func consumeRateLimitMiddleware(limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		userID := strings.TrimSpace(c.Param("user_id"))
		result, errAllow := limiter.AllowConsume(c.Request.Context(), userID)
		if errAllow != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
