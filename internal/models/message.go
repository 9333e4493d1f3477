package models

import "time"

// Message roles.
const (
	// RoleUser marks a message authored by the end user.
	RoleUser = "user"
	// RoleAssistant marks a model reply.
	RoleAssistant = "assistant"
)

// Message is a single chat turn entry. The accounting engine consumes
// messages read-only; computed costs live in MessageTokenCost so a
// successful message row is never mutated after creation.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PublicID  string  `gorm:"type:varchar(36);not null;uniqueIndex"` // Message UUID.
	SessionID string  `gorm:"type:varchar(64);not null;index"`       // Conversation session ID.
	UserID    *uint64 `gorm:"index"`                                 // Owning user ID, nil for anonymous sessions.

	Role    string `gorm:"type:varchar(16);not null;index"` // user or assistant.
	ModelID string `gorm:"type:varchar(255)"`               // Model identifier for assistant replies.

	UserMessageID *string `gorm:"type:varchar(36);index"` // Triggering user message UUID for assistant replies.
	CompletionID  string  `gorm:"type:varchar(255)"`      // Upstream completion identifier.

	InputTokens       int64 `gorm:"not null;default:0"` // Prompt token count.
	OutputTokens      int64 `gorm:"not null;default:0"` // Completion token count.
	OutputImageTokens int64 `gorm:"not null;default:0"` // Completion tokens attributable to generated images.

	WebSearchUsed    bool  `gorm:"not null;default:false"` // Whether web search ran for this reply.
	WebSearchResults int64 `gorm:"not null;default:0"`     // Web search results returned.

	HasError     bool   `gorm:"not null;default:false"` // Errored replies are never billed.
	ErrorMessage string `gorm:"type:text"`              // Upstream error detail, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
