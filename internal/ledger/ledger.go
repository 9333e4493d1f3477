package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/lumichat/billing/internal/costing"
	"github.com/lumichat/billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Linkage carries the identity fields written alongside a cost row.
type Linkage struct {
	UserMessageID *string
	SessionID     string
	UserID        *uint64
	CompletionID  string
	ModelID       string
}

// UpsertResult reports the totals before and after an upsert so the
// caller can apply the signed delta to the daily rollup.
type UpsertResult struct {
	PreviousTotal decimal.Decimal
	NewTotal      decimal.Decimal
}

// UpsertCost writes the authoritative cost row for an assistant
// message, replacing any existing row in full. The existing row is
// read under a row-level lock so concurrent recomputes for the same
// message serialize and previous/new totals are never interleaved.
// Must run inside the caller's transaction.
func UpsertCost(ctx context.Context, tx *gorm.DB, assistantMessageID string, breakdown costing.CostBreakdown, prices costing.Pricing, linkage Linkage, provenance datatypes.JSON) (UpsertResult, error) {
	result := UpsertResult{
		PreviousTotal: decimal.Zero,
		NewTotal:      breakdown.TotalCost,
	}
	if tx == nil {
		return result, errors.New("ledger: nil tx")
	}
	if assistantMessageID == "" {
		return result, errors.New("ledger: empty assistant message id")
	}

	var existing models.MessageTokenCost
	errFind := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("assistant_message_id = ?", assistantMessageID).
		Take(&existing).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return result, errFind
	}

	now := time.Now().UTC()

	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		row := models.MessageTokenCost{
			AssistantMessageID: assistantMessageID,
			UserMessageID:      linkage.UserMessageID,
			SessionID:          linkage.SessionID,
			UserID:             linkage.UserID,
			CompletionID:       linkage.CompletionID,
			ModelID:            linkage.ModelID,

			PromptTokens:     breakdown.PromptTokens,
			CompletionTokens: breakdown.TextCompletionTokens,
			ImageUnits:       breakdown.InputImageUnits,
			OutputImageUnits: breakdown.OutputImageUnits,
			WebSearchResults: breakdown.BilledWebSearchResults,

			PromptPrice:      prices.PromptPrice,
			CompletionPrice:  prices.CompletionPrice,
			InputImagePrice:  prices.InputImagePrice,
			OutputImagePrice: prices.OutputImagePrice,
			WebSearchPrice:   prices.WebSearchPrice,

			PromptCost:      breakdown.PromptCost,
			CompletionCost:  breakdown.CompletionCost,
			InputImageCost:  breakdown.InputImageCost,
			OutputImageCost: breakdown.OutputImageCost,
			WebSearchCost:   breakdown.WebSearchCost,
			TotalCost:       breakdown.TotalCost,

			Provenance: provenance,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if errCreate := tx.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return result, errCreate
		}
		return result, nil
	}

	result.PreviousTotal = existing.TotalCost

	updates := map[string]any{
		"user_message_id": linkage.UserMessageID,
		"session_id":      linkage.SessionID,
		"user_id":         linkage.UserID,
		"completion_id":   linkage.CompletionID,
		"model_id":        linkage.ModelID,

		"prompt_tokens":      breakdown.PromptTokens,
		"completion_tokens":  breakdown.TextCompletionTokens,
		"image_units":        breakdown.InputImageUnits,
		"output_image_units": breakdown.OutputImageUnits,
		"web_search_results": breakdown.BilledWebSearchResults,

		"prompt_price":       prices.PromptPrice,
		"completion_price":   prices.CompletionPrice,
		"input_image_price":  prices.InputImagePrice,
		"output_image_price": prices.OutputImagePrice,
		"web_search_price":   prices.WebSearchPrice,

		"prompt_cost":       breakdown.PromptCost,
		"completion_cost":   breakdown.CompletionCost,
		"input_image_cost":  breakdown.InputImageCost,
		"output_image_cost": breakdown.OutputImageCost,
		"web_search_cost":   breakdown.WebSearchCost,
		"total_cost":        breakdown.TotalCost,

		"provenance": provenance,
		"updated_at": now,
	}
	if errUpdate := tx.WithContext(ctx).
		Model(&models.MessageTokenCost{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; errUpdate != nil {
		return result, errUpdate
	}
	return result, nil
}
