package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MessageTokenCost is the authoritative per-assistant-message cost
// breakdown. At most one row exists per assistant message: recompute
// replaces the whole row instead of appending, so the daily rollup can
// be maintained with signed deltas against TotalCost.
type MessageTokenCost struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AssistantMessageID string  `gorm:"type:varchar(36);not null;uniqueIndex"` // Assistant message UUID.
	UserMessageID      *string `gorm:"type:varchar(36);index"`                // Triggering user message UUID.
	SessionID          string  `gorm:"type:varchar(64);not null;index"`       // Conversation session ID.
	UserID             *uint64 `gorm:"index"`                                 // Owning user ID, nil for anonymous.
	CompletionID       string  `gorm:"type:varchar(255)"`                     // Upstream completion identifier.
	ModelID            string  `gorm:"type:varchar(255);not null;index"`      // Model billed against.

	PromptTokens     int64 `gorm:"not null;default:0"` // Billed prompt tokens.
	CompletionTokens int64 `gorm:"not null;default:0"` // Billed text completion tokens.
	ImageUnits       int64 `gorm:"not null;default:0"` // Billed input image units (capped).
	OutputImageUnits int64 `gorm:"not null;default:0"` // Billed output image units.
	WebSearchResults int64 `gorm:"not null;default:0"` // Billed web-search results (capped).

	PromptPrice      decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Unit price at computation time.
	CompletionPrice  decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Unit price at computation time.
	InputImagePrice  decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Unit price at computation time.
	OutputImagePrice decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Unit price at computation time.
	WebSearchPrice   decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Unit price at computation time.

	PromptCost      decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Prompt component cost.
	CompletionCost  decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Text completion component cost.
	InputImageCost  decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Input image component cost.
	OutputImageCost decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Output image component cost.
	WebSearchCost   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Web-search component cost.
	TotalCost       decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Sum of components.

	Provenance datatypes.JSON `gorm:"type:jsonb"` // Pricing basis and heuristics used, reproducible offline.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last recompute timestamp.
}

// TableName overrides the default table name.
func (MessageTokenCost) TableName() string {
	return "message_token_costs"
}
