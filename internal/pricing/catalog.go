package pricing

import (
	"context"
	"errors"
	"strings"

	"github.com/lumichat/billing/internal/costing"
	"github.com/lumichat/billing/internal/models"
	internalsettings "github.com/lumichat/billing/internal/settings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultWebSearchPrice is charged per billable search result when the
// catalog does not populate the field; most catalogs still lag here.
// Overridable at runtime through the web_search_price setting.
const defaultWebSearchPrice = "0.004"

// Image-generation pricing lags in the upstream catalog for this model,
// so a static per-image fallback applies while its output-image price
// is zero.
const (
	fallbackOutputImageModelID = "google/gemini-2.5-flash-image-preview"
	fallbackOutputImagePrice   = "0.039"
)

// Snapshot is the pricing read model handed to the cost calculator,
// plus flags recording which fallbacks produced it (for provenance).
type Snapshot struct {
	ModelID string          `json:"model_id"`
	Pricing costing.Pricing `json:"pricing"`

	Known               bool `json:"known"`                 // Model found in the catalog.
	WebSearchFallback   bool `json:"web_search_fallback"`   // Baseline web-search price applied.
	OutputImageFallback bool `json:"output_image_fallback"` // Static output-image price applied.
}

// Catalog resolves current unit prices for a model. Implementations
// must degrade instead of failing for unknown models: billing never
// blocks message delivery.
type Catalog interface {
	GetPricing(ctx context.Context, modelID string) (Snapshot, error)
}

// GormCatalog reads pricing from the model_prices table.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog constructs a GormCatalog.
func NewGormCatalog(db *gorm.DB) *GormCatalog { return &GormCatalog{db: db} }

// GetPricing looks up current prices for the model. Unknown models
// resolve to all-zero prices rather than an error; zero web-search and
// lagging output-image prices are patched by documented fallbacks.
func (c *GormCatalog) GetPricing(ctx context.Context, modelID string) (Snapshot, error) {
	modelID = strings.TrimSpace(modelID)
	snapshot := Snapshot{ModelID: modelID}
	if c == nil || c.db == nil {
		return snapshot, errors.New("pricing: nil catalog")
	}
	if modelID == "" {
		return snapshot, nil
	}

	var row models.ModelPrice
	errFind := c.db.WithContext(ctx).
		Where("model_id = ? AND is_enabled = ?", modelID, true).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			// Unknown model: every component degrades to zero cost.
			log.WithField("model_id", modelID).Warn("pricing: model not in catalog, billing zero-cost components")
			return snapshot, nil
		}
		return snapshot, errFind
	}

	snapshot.Known = true
	snapshot.Pricing = costing.Pricing{
		PromptPrice:      row.PromptPrice,
		CompletionPrice:  row.CompletionPrice,
		InputImagePrice:  row.InputImagePrice,
		OutputImagePrice: row.OutputImagePrice,
		WebSearchPrice:   row.WebSearchPrice,
	}
	return applyFallbacks(snapshot), nil
}

// applyFallbacks patches zero-valued price fields that have documented
// baseline values.
func applyFallbacks(snapshot Snapshot) Snapshot {
	if snapshot.Pricing.WebSearchPrice.IsZero() {
		snapshot.Pricing.WebSearchPrice = webSearchBaselinePrice()
		snapshot.WebSearchFallback = true
	}
	if snapshot.ModelID == fallbackOutputImageModelID && snapshot.Pricing.OutputImagePrice.IsZero() {
		snapshot.Pricing.OutputImagePrice = decimal.RequireFromString(fallbackOutputImagePrice)
		snapshot.OutputImageFallback = true
	}
	return snapshot
}

// webSearchBaselinePrice returns the per-result baseline, preferring a
// runtime settings override.
func webSearchBaselinePrice() decimal.Decimal {
	if override, ok := internalsettings.WebSearchPriceOverride(); ok {
		return override
	}
	return decimal.RequireFromString(defaultWebSearchPrice)
}
