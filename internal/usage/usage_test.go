package usage

import (
	"context"
	"testing"

	dbutil "github.com/lumichat/billing/internal/db"
	"github.com/lumichat/billing/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
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

func seedModelPrice(t *testing.T, conn *gorm.DB, modelID string, prompt, completion, inputImage, outputImage, webSearch string) {
	t.Helper()
	row := models.ModelPrice{
		ModelID:          modelID,
		PromptPrice:      mustDecimal(t, prompt),
		CompletionPrice:  mustDecimal(t, completion),
		InputImagePrice:  mustDecimal(t, inputImage),
		OutputImagePrice: mustDecimal(t, outputImage),
		WebSearchPrice:   mustDecimal(t, webSearch),
		IsEnabled:        true,
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed model price: %v", errCreate)
	}
}

func loadUsageDay(t *testing.T, conn *gorm.DB, owner Owner) *models.UsageDay {
	t.Helper()
	var row models.UsageDay
	errFind := conn.
		Where("owner_type = ? AND owner_key = ?", owner.Type, owner.Key).
		Take(&row).Error
	if errFind != nil {
		if errFind == gorm.ErrRecordNotFound {
			return nil
		}
		t.Fatalf("load usage day: %v", errFind)
	}
	return &row
}

func loadCostRow(t *testing.T, conn *gorm.DB, assistantMessageID string) *models.MessageTokenCost {
	t.Helper()
	var row models.MessageTokenCost
	errFind := conn.Where("assistant_message_id = ?", assistantMessageID).Take(&row).Error
	if errFind != nil {
		if errFind == gorm.ErrRecordNotFound {
			return nil
		}
		t.Fatalf("load cost row: %v", errFind)
	}
	return &row
}

func countCostRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	if errCount := conn.Model(&models.MessageTokenCost{}).Count(&n).Error; errCount != nil {
		t.Fatalf("count cost rows: %v", errCount)
	}
	return n
}

var testCtx = context.Background()
