package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// getUserID extracts the authenticated user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// getSessionID extracts the caller's session ID from gin context.
func getSessionID(c *gin.Context) string {
	val, exists := c.Get("sessionID")
	if !exists {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// userIDRef returns the caller's user ID as a nullable reference.
func userIDRef(c *gin.Context) *uint64 {
	id := getUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}
