package handlers

import (
	"errors"
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

// AttachmentHandler manages attachment records and their message links.
type AttachmentHandler struct {
	db         *gorm.DB
	recomputer *usage.Recomputer
}

// NewAttachmentHandler constructs an AttachmentHandler.
func NewAttachmentHandler(db *gorm.DB, recomputer *usage.Recomputer) *AttachmentHandler {
	return &AttachmentHandler{db: db, recomputer: recomputer}
}

// createAttachmentRequest defines the request body for attachment creation.
type createAttachmentRequest struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// Create registers an uploaded attachment, unlinked until a message
// claims it.
func (h *AttachmentHandler) Create(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	var body createAttachmentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	source := strings.TrimSpace(body.Source)
	if source == "" {
		source = models.AttachmentSourceUser
	}
	if source != models.AttachmentSourceUser && source != models.AttachmentSourceAssistant {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source"})
		return
	}
	if body.SizeBytes < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "negative size"})
		return
	}

	publicID := strings.TrimSpace(body.ID)
	if publicID == "" {
		publicID = uuid.NewString()
	}

	now := time.Now().UTC()
	att := models.Attachment{
		PublicID:  publicID,
		SessionID: sessionID,
		Status:    models.AttachmentStatusReady,
		Source:    source,
		MimeType:  strings.TrimSpace(body.MimeType),
		SizeBytes: body.SizeBytes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&att).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create attachment failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": att.PublicID, "status": att.Status})
}

// linkAttachmentRequest defines the request body for linking.
type linkAttachmentRequest struct {
	MessageID string `json:"message_id"`
}

// Link attaches an uploaded attachment to a message. Linking to a user
// message triggers cost recomputation of its assistant reply; linking
// to an assistant message does not, because output images are gathered
// directly from the reply at the next recompute.
func (h *AttachmentHandler) Link(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}

	attachmentID := strings.TrimSpace(c.Param("id"))
	var body linkAttachmentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	messageID := strings.TrimSpace(body.MessageID)
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing message id"})
		return
	}

	ctx := c.Request.Context()

	var msg models.Message
	if errFind := h.db.WithContext(ctx).
		Where("public_id = ? AND session_id = ?", messageID, sessionID).
		Take(&msg).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query message failed"})
		return
	}

	res := h.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("public_id = ? AND session_id = ? AND status = ?", attachmentID, sessionID, models.AttachmentStatusReady).
		Updates(map[string]any{
			"message_id": messageID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "link attachment failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}

	costRecomputed := false
	if msg.Role == models.RoleUser {
		costRecomputed = true
		if errRecompute := h.recomputer.Recompute(ctx, messageID); errRecompute != nil {
			costRecomputed = false
			log.WithError(errRecompute).WithField("message_id", messageID).
				Warn("attachments: cost recompute failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              attachmentID,
		"message_id":      messageID,
		"cost_recomputed": costRecomputed,
	})
}
