package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumichat/billing/internal/usage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UsageHandler serves usage ingestion and reporting endpoints.
type UsageHandler struct {
	db         *gorm.DB
	anonSecret string
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB, anonSecret string) *UsageHandler {
	return &UsageHandler{db: db, anonSecret: anonSecret}
}

// eventsRequest defines the request body for anonymous event ingestion.
type eventsRequest struct {
	Events []usage.Event `json:"events"`
}

// Events ingests anonymous usage events. Authenticated callers are
// rejected: their usage is recorded server-side at turn creation.
func (h *UsageHandler) Events(c *gin.Context) {
	if getUserID(c) != 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "events are for anonymous sessions"})
		return
	}
	sessionID := getSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	var body eventsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no events"})
		return
	}

	owner := usage.AnonOwner(h.anonSecret, sessionID)
	if errApply := usage.ApplyAnonymousEvents(c.Request.Context(), h.db, owner, body.Events); errApply != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errApply.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(body.Events)})
}

// Daily returns the caller's recent daily aggregates, newest first.
func (h *UsageHandler) Daily(c *gin.Context) {
	var owner usage.Owner
	if userID := getUserID(c); userID != 0 {
		owner = usage.UserOwner(userID)
	} else if sessionID := getSessionID(c); sessionID != "" {
		owner = usage.AnonOwner(h.anonSecret, sessionID)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing caller identity"})
		return
	}

	from := parseDateParam(c.Query("from"))
	to := parseDateParam(c.Query("to"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, errQuery := usage.OwnerDailyUsage(c.Request.Context(), h.db, owner, from, to, limit)
	if errQuery != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query usage failed"})
		return
	}

	type dailyItem struct {
		Date             string `json:"date"`
		MessagesSent     int64  `json:"messages_sent"`
		MessagesReceived int64  `json:"messages_received"`
		InputTokens      int64  `json:"input_tokens"`
		OutputTokens     int64  `json:"output_tokens"`
		TotalTokens      int64  `json:"total_tokens"`
		EstimatedCost    string `json:"estimated_cost"`
	}
	items := make([]dailyItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dailyItem{
			Date:             row.UsageDate.Format("2006-01-02"),
			MessagesSent:     row.MessagesSent,
			MessagesReceived: row.MessagesReceived,
			InputTokens:      row.InputTokens,
			OutputTokens:     row.OutputTokens,
			TotalTokens:      row.TotalTokens,
			EstimatedCost:    row.EstimatedCost.StringFixed(6),
		})
	}
	c.JSON(http.StatusOK, gin.H{"days": items})
}

// parseDateParam parses a YYYY-MM-DD query value, zero when absent or
// malformed.
func parseDateParam(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	parsed, errParse := time.Parse("2006-01-02", raw)
	if errParse != nil {
		return time.Time{}
	}
	return parsed
}
