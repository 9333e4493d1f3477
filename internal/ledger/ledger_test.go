package ledger

import (
	"context"
	"testing"

	"github.com/lumichat/billing/internal/costing"
	dbutil "github.com/lumichat/billing/internal/db"
	"github.com/lumichat/billing/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, errParse := decimal.NewFromString(s)
	if errParse != nil {
		t.Fatalf("parse decimal %q: %v", s, errParse)
	}
	return d
}

func testBreakdown(t *testing.T, prompt, completion int64, total string) costing.CostBreakdown {
	t.Helper()
	return costing.CostBreakdown{
		PromptTokens:         prompt,
		TextCompletionTokens: completion,
		PromptCost:           mustDecimal(t, "0.000004"),
		CompletionCost:       mustDecimal(t, "0.001550"),
		TotalCost:            mustDecimal(t, total),
	}
}

func testLinkage() Linkage {
	userMsgID := "user-msg-1"
	uid := uint64(42)
	return Linkage{
		UserMessageID: &userMsgID,
		SessionID:     "session-1",
		UserID:        &uid,
		CompletionID:  "cmpl-1",
		ModelID:       "openai/gpt-4o-mini",
	}
}

func TestUpsertCostCreateThenReplace(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	prov := datatypes.JSON([]byte(`{"model_id":"openai/gpt-4o-mini"}`))

	var first UpsertResult
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		var errUpsert error
		first, errUpsert = UpsertCost(ctx, tx, "assistant-msg-1", testBreakdown(t, 7, 1033, "0.001554"), costing.Pricing{}, testLinkage(), prov)
		return errUpsert
	})
	if errTx != nil {
		t.Fatalf("first upsert: %v", errTx)
	}
	if !first.PreviousTotal.IsZero() {
		t.Fatalf("previous total = %s, want 0 on create", first.PreviousTotal)
	}
	if want := mustDecimal(t, "0.001554"); !first.NewTotal.Equal(want) {
		t.Fatalf("new total = %s, want %s", first.NewTotal, want)
	}

	var second UpsertResult
	errTx = conn.Transaction(func(tx *gorm.DB) error {
		var errUpsert error
		second, errUpsert = UpsertCost(ctx, tx, "assistant-msg-1", testBreakdown(t, 7, 1033, "0.002554"), costing.Pricing{}, testLinkage(), prov)
		return errUpsert
	})
	if errTx != nil {
		t.Fatalf("second upsert: %v", errTx)
	}
	if want := mustDecimal(t, "0.001554"); !second.PreviousTotal.Equal(want) {
		t.Fatalf("previous total = %s, want %s", second.PreviousTotal, want)
	}
	if want := mustDecimal(t, "0.002554"); !second.NewTotal.Equal(want) {
		t.Fatalf("new total = %s, want %s", second.NewTotal, want)
	}

	var n int64
	if errCount := conn.Model(&models.MessageTokenCost{}).Count(&n).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if n != 1 {
		t.Fatalf("cost rows = %d, want 1", n)
	}

	var row models.MessageTokenCost
	if errFind := conn.Where("assistant_message_id = ?", "assistant-msg-1").Take(&row).Error; errFind != nil {
		t.Fatalf("load row: %v", errFind)
	}
	if want := mustDecimal(t, "0.002554"); !row.TotalCost.Equal(want) {
		t.Fatalf("stored total = %s, want %s", row.TotalCost, want)
	}
}

func TestUpsertCostReplacesWholeRow(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	prov := datatypes.JSON([]byte(`{}`))

	firstBreakdown := costing.CostBreakdown{
		PromptTokens:           7,
		TextCompletionTokens:   1033,
		InputImageUnits:        2,
		BilledWebSearchResults: 5,
		PromptCost:             mustDecimal(t, "0.000004"),
		CompletionCost:         mustDecimal(t, "0.001550"),
		InputImageCost:         mustDecimal(t, "0.002"),
		WebSearchCost:          mustDecimal(t, "0.020"),
		TotalCost:              mustDecimal(t, "0.023554"),
	}
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		_, errUpsert := UpsertCost(ctx, tx, "assistant-msg-1", firstBreakdown, costing.Pricing{}, testLinkage(), prov)
		return errUpsert
	})
	if errTx != nil {
		t.Fatalf("first upsert: %v", errTx)
	}

	// Recompute with images and searches gone: stale quantities must not
	// survive the replacement.
	errTx = conn.Transaction(func(tx *gorm.DB) error {
		_, errUpsert := UpsertCost(ctx, tx, "assistant-msg-1", testBreakdown(t, 7, 1033, "0.001554"), costing.Pricing{}, testLinkage(), prov)
		return errUpsert
	})
	if errTx != nil {
		t.Fatalf("second upsert: %v", errTx)
	}

	var row models.MessageTokenCost
	if errFind := conn.Where("assistant_message_id = ?", "assistant-msg-1").Take(&row).Error; errFind != nil {
		t.Fatalf("load row: %v", errFind)
	}
	if row.ImageUnits != 0 || row.WebSearchResults != 0 {
		t.Fatalf("stale quantities survived: images=%d searches=%d", row.ImageUnits, row.WebSearchResults)
	}
	if !row.InputImageCost.IsZero() || !row.WebSearchCost.IsZero() {
		t.Fatalf("stale component costs survived: image=%s search=%s", row.InputImageCost, row.WebSearchCost)
	}
}

func TestUpsertCostRejectsEmptyID(t *testing.T) {
	conn := openTestDB(t)
	errTx := conn.Transaction(func(tx *gorm.DB) error {
		_, errUpsert := UpsertCost(context.Background(), tx, "", costing.CostBreakdown{}, costing.Pricing{}, Linkage{}, nil)
		return errUpsert
	})
	if errTx == nil {
		t.Fatal("expected error for empty assistant message id")
	}
}
