package usage

import (
	"context"
	"errors"
	"time"

	"github.com/lumichat/billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApplyCostDelta adds a signed cost delta to the owner's daily rollup,
// inserting the row when it does not exist yet. Zero deltas skip the
// write entirely to avoid needless contention on a hot aggregate row.
// Negative deltas are applied as-is: transient negative intermediate
// states are acceptable as long as the converged value is correct.
func ApplyCostDelta(ctx context.Context, tx *gorm.DB, owner Owner, day time.Time, delta decimal.Decimal) error {
	if tx == nil {
		return errors.New("usage: nil tx")
	}
	if owner.Type == "" || owner.Key == "" {
		return errors.New("usage: empty owner")
	}
	if delta.IsZero() {
		return nil
	}

	day = DayOf(day)
	now := time.Now().UTC()

	res := tx.WithContext(ctx).
		Model(&models.UsageDay{}).
		Where("owner_type = ? AND owner_key = ? AND usage_date = ?", owner.Type, owner.Key, day).
		Updates(map[string]any{
			"estimated_cost": gorm.Expr("estimated_cost + ?", delta),
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	row := models.UsageDay{
		OwnerType:     owner.Type,
		OwnerKey:      owner.Key,
		UsageDate:     day,
		EstimatedCost: delta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// A concurrent insert for the same owner/day loses on the unique
	// index; the caller retries the whole read-compute-write sequence.
	return tx.WithContext(ctx).Create(&row).Error
}

// RecordMessageCreated increments the owner's message and token
// counters for a newly created message. This runs exactly once, at
// message creation: recomputes and attachment links must never touch
// these counters, only the cost delta.
func RecordMessageCreated(ctx context.Context, db *gorm.DB, owner Owner, msg *models.Message) error {
	if db == nil {
		return errors.New("usage: nil db")
	}
	if msg == nil {
		return errors.New("usage: nil message")
	}
	if owner.Type == "" || owner.Key == "" {
		return errors.New("usage: empty owner")
	}

	increments := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	switch msg.Role {
	case models.RoleUser:
		increments["messages_sent"] = gorm.Expr("messages_sent + 1")
	case models.RoleAssistant:
		increments["messages_received"] = gorm.Expr("messages_received + 1")
		increments["input_tokens"] = gorm.Expr("input_tokens + ?", msg.InputTokens)
		increments["output_tokens"] = gorm.Expr("output_tokens + ?", msg.OutputTokens)
		increments["total_tokens"] = gorm.Expr("total_tokens + ?", msg.InputTokens+msg.OutputTokens)
	default:
		return errors.New("usage: unknown message role: " + msg.Role)
	}

	day := DayOf(msg.CreatedAt)
	if msg.CreatedAt.IsZero() {
		day = DayOf(time.Now())
	}

	res := db.WithContext(ctx).
		Model(&models.UsageDay{}).
		Where("owner_type = ? AND owner_key = ? AND usage_date = ?", owner.Type, owner.Key, day).
		Updates(increments)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	now := time.Now().UTC()
	row := models.UsageDay{
		OwnerType: owner.Type,
		OwnerKey:  owner.Key,
		UsageDate: day,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch msg.Role {
	case models.RoleUser:
		row.MessagesSent = 1
	case models.RoleAssistant:
		row.MessagesReceived = 1
		row.InputTokens = msg.InputTokens
		row.OutputTokens = msg.OutputTokens
		row.TotalTokens = msg.InputTokens + msg.OutputTokens
	}
	if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		// Lost an insert race for the first row of the day: apply the
		// increments against the winner.
		res := db.WithContext(ctx).
			Model(&models.UsageDay{}).
			Where("owner_type = ? AND owner_key = ? AND usage_date = ?", owner.Type, owner.Key, day).
			Updates(increments)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCreate
		}
	}
	return nil
}
