package settings

// DB config keys and defaults for settings.
const (
	// CostRetentionDaysKey controls how long cost records are kept.
	CostRetentionDaysKey = "COST_RETENTION_DAYS"
	// DefaultCostRetentionDays is the fallback retention window in days.
	// Zero or negative disables retention cleanup.
	DefaultCostRetentionDays = 365

	// WebSearchPriceKey overrides the per-result web-search baseline price.
	WebSearchPriceKey = "WEB_SEARCH_PRICE"
)
