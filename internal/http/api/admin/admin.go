package admin

import (
	"net/http"
	"strings"

	"github.com/lumichat/billing/internal/config"
	"github.com/lumichat/billing/internal/http/api/admin/handlers"
	"github.com/lumichat/billing/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers reporting routes behind admin JWT auth.
// Admin tokens are issued out of band; there is no admin account table.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")
	group.Use(adminAuthMiddleware(jwtCfg))

	usageHandler := handlers.NewUsageAdminHandler(db)
	group.GET("/usage/history", usageHandler.History)
	group.GET("/costs", usageHandler.Costs)
}

// adminAuthMiddleware validates admin JWTs.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseAdminToken(jwtCfg.AdminSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
