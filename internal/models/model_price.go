package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModelPrice is a pricing catalog row for one model. Unit prices are
// per token (prompt/completion), per image unit, or per web-search
// result, kept at 10 fractional digits since per-token prices are
// fractions of a cent.
type ModelPrice struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ModelID string `gorm:"type:varchar(255);not null;uniqueIndex"` // Model identifier.

	PromptPrice      decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Price per prompt token.
	CompletionPrice  decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Price per completion token.
	InputImagePrice  decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Price per input image unit.
	OutputImagePrice decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Price per output image unit.
	WebSearchPrice   decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Price per billable search result.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the catalog entry is active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
