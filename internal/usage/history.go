package usage

import (
	"context"
	"errors"
	"strings"
	"time"

	dbutil "github.com/lumichat/billing/internal/db"
	"github.com/lumichat/billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HistoryRow is one reporting bucket of an owner's cost history.
type HistoryRow struct {
	Bucket           string          `json:"bucket"`
	Messages         int64           `json:"messages"`
	PromptTokens     int64           `json:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

// HistoryFilter selects whose cost records a history read covers:
// a user ID for authenticated usage or a session ID for anonymous
// usage. Exactly one must be set.
type HistoryFilter struct {
	UserID    *uint64
	SessionID string
}

// OwnerCostHistory aggregates stored cost records for one owner by
// day, week, or month buckets over a date range. This is a reporting
// read for administrative dashboards; gaps from failed recomputes are
// expected and tolerated.
func OwnerCostHistory(ctx context.Context, db *gorm.DB, filter HistoryFilter, from, to time.Time, granularity string) ([]HistoryRow, error) {
	if db == nil {
		return nil, errors.New("usage: nil db")
	}
	if filter.UserID == nil && strings.TrimSpace(filter.SessionID) == "" {
		return nil, errors.New("usage: history filter requires a user or session")
	}
	granularity = strings.ToLower(strings.TrimSpace(granularity))
	if granularity == "" {
		granularity = "day"
	}

	bucketExpr, errBucket := dbutil.DateBucketExpr(db, "created_at", granularity)
	if errBucket != nil {
		return nil, errBucket
	}

	q := db.WithContext(ctx).
		Model(&models.MessageTokenCost{}).
		Select(bucketExpr + ` AS bucket,
			COUNT(*) AS messages,
			COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
			COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
			COALESCE(SUM(total_cost), 0) AS total_cost`)

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	} else {
		q = q.Where("user_id IS NULL AND session_id = ?", strings.TrimSpace(filter.SessionID))
	}

	if !from.IsZero() {
		q = q.Where("created_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to.UTC())
	}

	var rows []HistoryRow
	if errScan := q.Group("bucket").Order("bucket ASC").Scan(&rows).Error; errScan != nil {
		return nil, errScan
	}
	return rows, nil
}

// OwnerDailyUsage returns the owner's stored daily aggregates for a
// date range, newest first.
func OwnerDailyUsage(ctx context.Context, db *gorm.DB, owner Owner, from, to time.Time, limit int) ([]models.UsageDay, error) {
	if db == nil {
		return nil, errors.New("usage: nil db")
	}
	if owner.Type == "" || owner.Key == "" {
		return nil, errors.New("usage: empty owner")
	}
	if limit <= 0 || limit > 366 {
		limit = 31
	}

	q := db.WithContext(ctx).
		Model(&models.UsageDay{}).
		Where("owner_type = ? AND owner_key = ?", owner.Type, owner.Key)
	if !from.IsZero() {
		q = q.Where("usage_date >= ?", DayOf(from))
	}
	if !to.IsZero() {
		q = q.Where("usage_date <= ?", DayOf(to))
	}

	var rows []models.UsageDay
	if errFind := q.Order("usage_date DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}
