package models

import "time"

// Attachment statuses.
const (
	// AttachmentStatusReady marks an attachment as uploaded and usable.
	AttachmentStatusReady = "ready"
	// AttachmentStatusDeleted marks a soft-deleted attachment.
	AttachmentStatusDeleted = "deleted"
)

// Attachment sources.
const (
	// AttachmentSourceUser tags user-supplied input media.
	AttachmentSourceUser = "user"
	// AttachmentSourceAssistant tags model-generated output media.
	AttachmentSourceAssistant = "assistant"
)

// Attachment is a media object linked to a message. Attachments are
// created unlinked on upload and gain a message link afterwards, which
// is why cost recomputation must tolerate links arriving late.
type Attachment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PublicID  string `gorm:"type:varchar(36);not null;uniqueIndex"` // Attachment UUID.
	SessionID string `gorm:"type:varchar(64);not null;index"`       // Conversation session ID.

	MessageID *string `gorm:"type:varchar(36);index"` // Linked message UUID, nil until linked.

	Status string `gorm:"type:varchar(16);not null;default:ready;index"` // ready or deleted.
	Source string `gorm:"type:varchar(16);not null;default:user"`        // user or assistant.

	MimeType  string `gorm:"type:varchar(255)"`  // Media MIME type.
	SizeBytes int64  `gorm:"not null;default:0"` // Stored object size.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
