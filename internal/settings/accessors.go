package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CostRetentionDays returns the configured cost-record retention window
// in days, falling back to the default when unset or malformed.
func CostRetentionDays() int {
	raw, ok := DBConfigValue(CostRetentionDaysKey)
	if !ok {
		return DefaultCostRetentionDays
	}
	if parsed, okParse := parseConfigInt(raw); okParse {
		return parsed
	}
	return DefaultCostRetentionDays
}

// WebSearchPriceOverride returns the configured per-result web-search
// price, when one is set and valid.
func WebSearchPriceOverride() (decimal.Decimal, bool) {
	raw, ok := DBConfigValue(WebSearchPriceKey)
	if !ok {
		return decimal.Zero, false
	}
	if parsed, okParse := parseConfigDecimal(raw); okParse && parsed.IsPositive() {
		return parsed, true
	}
	return decimal.Zero, false
}

// parseConfigInt accepts a JSON number, integral float, or numeric string.
func parseConfigInt(raw json.RawMessage) (int, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
	}
	return 0, false
}

// parseConfigDecimal accepts a JSON number or numeric string. Strings
// are preferred for prices so no float precision is lost in transit.
func parseConfigDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return decimal.Zero, false
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := decimal.NewFromString(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
		return decimal.Zero, false
	}
	parsed, errParse := decimal.NewFromString(string(raw))
	if errParse == nil {
		return parsed, true
	}
	return decimal.Zero, false
}
