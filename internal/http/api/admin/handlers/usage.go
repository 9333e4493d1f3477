package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumichat/billing/internal/models"
	"github.com/lumichat/billing/internal/usage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UsageAdminHandler serves reporting endpoints for operators.
type UsageAdminHandler struct {
	db *gorm.DB
}

// NewUsageAdminHandler constructs a UsageAdminHandler.
func NewUsageAdminHandler(db *gorm.DB) *UsageAdminHandler {
	return &UsageAdminHandler{db: db}
}

// History returns one owner's cost history in day, week, or month
// buckets. Exactly one of user_id and session_id selects the owner.
func (h *UsageAdminHandler) History(c *gin.Context) {
	filter := usage.HistoryFilter{SessionID: strings.TrimSpace(c.Query("session_id"))}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		userID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil || userID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		filter.UserID = &userID
	}
	if filter.UserID == nil && filter.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or session_id required"})
		return
	}
	if filter.UserID != nil && filter.SessionID != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and session_id are exclusive"})
		return
	}

	granularity := strings.ToLower(strings.TrimSpace(c.Query("granularity")))
	switch granularity {
	case "", "day", "week", "month":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid granularity"})
		return
	}

	from := parseDateParam(c.Query("from"))
	to := parseDateParam(c.Query("to"))

	rows, errQuery := usage.OwnerCostHistory(c.Request.Context(), h.db, filter, from, to, granularity)
	if errQuery != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query history failed"})
		return
	}

	type historyItem struct {
		Bucket           string `json:"bucket"`
		Messages         int64  `json:"messages"`
		PromptTokens     int64  `json:"prompt_tokens"`
		CompletionTokens int64  `json:"completion_tokens"`
		TotalCost        string `json:"total_cost"`
	}
	items := make([]historyItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, historyItem{
			Bucket:           row.Bucket,
			Messages:         row.Messages,
			PromptTokens:     row.PromptTokens,
			CompletionTokens: row.CompletionTokens,
			TotalCost:        row.TotalCost.StringFixed(6),
		})
	}
	c.JSON(http.StatusOK, gin.H{"buckets": items})
}

// costItem is one cost record in the listing.
type costItem struct {
	AssistantMessageID string  `json:"assistant_message_id"`
	UserMessageID      *string `json:"user_message_id,omitempty"`
	SessionID          string  `json:"session_id"`
	UserID             *uint64 `json:"user_id,omitempty"`
	ModelID            string  `json:"model_id"`
	PromptTokens       int64   `json:"prompt_tokens"`
	CompletionTokens   int64   `json:"completion_tokens"`
	ImageUnits         int64   `json:"image_units"`
	OutputImageUnits   int64   `json:"output_image_units"`
	WebSearchResults   int64   `json:"web_search_results"`
	TotalCost          string  `json:"total_cost"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// Costs lists stored cost records, newest first, with optional filters.
func (h *UsageAdminHandler) Costs(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.MessageTokenCost{})

	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		userID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		q = q.Where("user_id = ?", userID)
	}
	if sessionID := strings.TrimSpace(c.Query("session_id")); sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if modelID := strings.TrimSpace(c.Query("model_id")); modelID != "" {
		q = q.Where("model_id = ?", modelID)
	}
	if from := parseDateParam(c.Query("from")); !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if to := parseDateParam(c.Query("to")); !to.IsZero() {
		q = q.Where("created_at < ?", to.AddDate(0, 0, 1))
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count costs failed"})
		return
	}

	var rows []models.MessageTokenCost
	if errFind := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query costs failed"})
		return
	}

	items := make([]costItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, costItem{
			AssistantMessageID: row.AssistantMessageID,
			UserMessageID:      row.UserMessageID,
			SessionID:          row.SessionID,
			UserID:             row.UserID,
			ModelID:            row.ModelID,
			PromptTokens:       row.PromptTokens,
			CompletionTokens:   row.CompletionTokens,
			ImageUnits:         row.ImageUnits,
			OutputImageUnits:   row.OutputImageUnits,
			WebSearchResults:   row.WebSearchResults,
			TotalCost:          row.TotalCost.StringFixed(6),
			CreatedAt:          row.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:          row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "costs": items})
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
