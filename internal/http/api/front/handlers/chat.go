package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/lumichat/billing/internal/models"
	"github.com/lumichat/billing/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChatHandler records completed chat turns.
type ChatHandler struct {
	db         *gorm.DB
	recomputer *usage.Recomputer
	anonSecret string
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(db *gorm.DB, recomputer *usage.Recomputer, anonSecret string) *ChatHandler {
	return &ChatHandler{db: db, recomputer: recomputer, anonSecret: anonSecret}
}

// turnMessage defines one message of a completed turn.
type turnMessage struct {
	ID                string `json:"id"`
	ModelID           string `json:"model_id"`
	CompletionID      string `json:"completion_id"`
	InputTokens       int64  `json:"input_tokens"`
	OutputTokens      int64  `json:"output_tokens"`
	OutputImageTokens int64  `json:"output_image_tokens"`
	WebSearchUsed     bool   `json:"web_search_used"`
	WebSearchResults  int64  `json:"web_search_results"`
	HasError          bool   `json:"has_error"`
	ErrorMessage      string `json:"error_message"`
}

// createTurnRequest defines the request body for recording a turn.
type createTurnRequest struct {
	UserMessage      turnMessage `json:"user_message"`
	AssistantMessage turnMessage `json:"assistant_message"`
}

// CreateTurn persists a user message and its assistant reply, records
// usage counters once, and triggers cost recomputation. A recompute
// failure is reported in the response but never fails the turn.
func (h *ChatHandler) CreateTurn(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	var body createTurnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.AssistantMessage.ModelID == "" && !body.AssistantMessage.HasError {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model id"})
		return
	}
	if body.UserMessage.InputTokens < 0 || body.AssistantMessage.InputTokens < 0 ||
		body.AssistantMessage.OutputTokens < 0 || body.AssistantMessage.WebSearchResults < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "negative token counts"})
		return
	}

	userID := userIDRef(c)
	now := time.Now().UTC()

	userMsgID := strings.TrimSpace(body.UserMessage.ID)
	if userMsgID == "" {
		userMsgID = uuid.NewString()
	}
	assistantMsgID := strings.TrimSpace(body.AssistantMessage.ID)
	if assistantMsgID == "" {
		assistantMsgID = uuid.NewString()
	}

	userMsg := models.Message{
		PublicID:  userMsgID,
		SessionID: sessionID,
		UserID:    userID,
		Role:      models.RoleUser,
		CreatedAt: now,
	}
	assistantMsg := models.Message{
		PublicID:          assistantMsgID,
		SessionID:         sessionID,
		UserID:            userID,
		Role:              models.RoleAssistant,
		ModelID:           strings.TrimSpace(body.AssistantMessage.ModelID),
		UserMessageID:     &userMsgID,
		CompletionID:      strings.TrimSpace(body.AssistantMessage.CompletionID),
		InputTokens:       body.AssistantMessage.InputTokens,
		OutputTokens:      body.AssistantMessage.OutputTokens,
		OutputImageTokens: body.AssistantMessage.OutputImageTokens,
		WebSearchUsed:     body.AssistantMessage.WebSearchUsed,
		WebSearchResults:  body.AssistantMessage.WebSearchResults,
		HasError:          body.AssistantMessage.HasError,
		ErrorMessage:      strings.TrimSpace(body.AssistantMessage.ErrorMessage),
		CreatedAt:         now,
	}

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&userMsg).Error; errCreate != nil {
			return errCreate
		}
		return tx.Create(&assistantMsg).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create messages failed"})
		return
	}

	// Counters increment exactly once, here at creation. Recompute never
	// touches them.
	owner := usage.OwnerForMessage(h.anonSecret, &userMsg)
	if errRecord := usage.RecordMessageCreated(ctx, h.db, owner, &userMsg); errRecord != nil {
		log.WithError(errRecord).Warn("chat: record user message counters failed")
	}
	if errRecord := usage.RecordMessageCreated(ctx, h.db, owner, &assistantMsg); errRecord != nil {
		log.WithError(errRecord).Warn("chat: record assistant message counters failed")
	}

	costRecomputed := true
	if errRecompute := h.recomputer.Recompute(ctx, assistantMsgID); errRecompute != nil {
		costRecomputed = false
		log.WithError(errRecompute).WithField("assistant_message_id", assistantMsgID).
			Warn("chat: cost recompute failed")
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_message_id":      userMsgID,
		"assistant_message_id": assistantMsgID,
		"cost_recomputed":      costRecomputed,
	})
}
