// Package admin registers the operator API.
package admin

import (
	"net/http"
	"strings"

	"github.com/brandforge/creditd/internal/config"
	handlers "github.com/brandforge/creditd/internal/http/api/admin/handlers"
	"github.com/brandforge/creditd/internal/ledger"
	"github.com/brandforge/creditd/internal/models"
	"github.com/brandforge/creditd/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, ledgerMgr *ledger.Manager, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	tierHandler := handlers.NewPricingTierHandler(db)
	authed.POST("/pricing-tiers", tierHandler.Create)
	authed.GET("/pricing-tiers", tierHandler.List)
	authed.GET("/pricing-tiers/:id", tierHandler.Get)
	authed.PUT("/pricing-tiers/:id", tierHandler.Update)
	authed.DELETE("/pricing-tiers/:id", tierHandler.Delete)
	authed.POST("/pricing-tiers/:id/enable", tierHandler.Enable)
	authed.POST("/pricing-tiers/:id/disable", tierHandler.Disable)

	packageHandler := handlers.NewPackageHandler(db)
	authed.POST("/packages", packageHandler.Create)
	authed.GET("/packages", packageHandler.List)
	authed.PUT("/packages/:id", packageHandler.Update)
	authed.DELETE("/packages/:id", packageHandler.Delete)

	grantHandler := handlers.NewGrantHandler(ledgerMgr)
	authed.POST("/users/:user_id/credits/grant", grantHandler.Grant)
	authed.POST("/users/:user_id/credits/bonus", grantHandler.Bonus)
	authed.POST("/users/:user_id/credits/refund", grantHandler.Refund)

	usageHandler := handlers.NewUsageHandler(db)
	authed.GET("/usage", usageHandler.List)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
