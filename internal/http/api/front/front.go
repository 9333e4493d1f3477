package front

import (
	"net/http"
	"strings"

	"github.com/lumichat/billing/internal/config"
	"github.com/lumichat/billing/internal/http/api/front/handlers"
	"github.com/lumichat/billing/internal/security"
	"github.com/lumichat/billing/internal/usage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the public API. Every route accepts
// either an authenticated caller (Bearer JWT) or an anonymous one
// (X-Session-Id header); callerMiddleware resolves both.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, recomputer *usage.Recomputer, anonSecret string) {
	if r == nil || db == nil {
		return
	}

	v1 := r.Group("/v1")
	v1.Use(callerMiddleware(jwtCfg))

	chatHandler := handlers.NewChatHandler(db, recomputer, anonSecret)
	v1.POST("/chat/turns", chatHandler.CreateTurn)

	attachmentHandler := handlers.NewAttachmentHandler(db, recomputer)
	v1.POST("/attachments", attachmentHandler.Create)
	v1.POST("/attachments/:id/link", attachmentHandler.Link)

	usageHandler := handlers.NewUsageHandler(db, anonSecret)
	v1.POST("/usage/events", usageHandler.Events)
	v1.GET("/usage/daily", usageHandler.Daily)

	pricingHandler := handlers.NewModelPricingHandler(db)
	v1.GET("/models/pricing", pricingHandler.List)
}

// callerMiddleware resolves the caller identity. A valid Bearer JWT
// sets userID; an X-Session-Id header sets sessionID. A request may
// carry both (an authenticated user inside a session); a malformed
// token is rejected rather than silently downgraded to anonymous.
func callerMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionID := strings.TrimSpace(c.GetHeader("X-Session-Id")); sessionID != "" {
			c.Set("sessionID", sessionID)
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.Next()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, errJWT := security.ParseUserToken(jwtCfg.Secret, strings.TrimSpace(token))
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", claims.UserID)
		c.Next()
	}
}
