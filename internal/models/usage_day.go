package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Usage owner types.
const (
	// OwnerTypeUser keys an aggregate by authenticated user ID.
	OwnerTypeUser = "user"
	// OwnerTypeAnon keys an aggregate by anonymized session identifier.
	OwnerTypeAnon = "anon"
)

// UsageDay is the per-owner daily usage rollup. Message and token
// counters are incremented exactly once, on message creation;
// EstimatedCost is maintained by applying signed recompute deltas so
// repeated recomputation never double-counts.
type UsageDay struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerType string    `gorm:"type:varchar(8);not null;uniqueIndex:idx_usage_owner_day"`    // user or anon.
	OwnerKey  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_usage_owner_day"`  // User ID or anonymized session key.
	UsageDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_usage_owner_day;index"`    // UTC day bucket.

	MessagesSent     int64 `gorm:"not null;default:0"` // User messages created.
	MessagesReceived int64 `gorm:"not null;default:0"` // Assistant messages created.
	InputTokens      int64 `gorm:"not null;default:0"` // Prompt tokens across the day.
	OutputTokens     int64 `gorm:"not null;default:0"` // Completion tokens across the day.
	TotalTokens      int64 `gorm:"not null;default:0"` // Input plus output tokens.

	EstimatedCost decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"` // Cumulative cost via deltas.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (UsageDay) TableName() string {
	return "usage_days"
}
