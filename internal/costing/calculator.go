package costing

import "github.com/shopspring/decimal"

// costScale is the number of fractional digits kept on cost components.
const costScale = 6

// MaxBillableWebSearchResults caps how many search results are billed
// per message regardless of how many were actually returned.
const MaxBillableWebSearchResults = 50

// MaxBillableInputImages caps billable input images per user message.
const MaxBillableInputImages = 3

// Pricing is a snapshot of per-unit prices for one model. Prices are
// per prompt/completion token, per input/output image unit, and per
// billable web-search result.
type Pricing struct {
	PromptPrice      decimal.Decimal
	CompletionPrice  decimal.Decimal
	InputImagePrice  decimal.Decimal
	OutputImagePrice decimal.Decimal
	WebSearchPrice   decimal.Decimal
}

// CostInput carries the billable quantities for one assistant message.
// InputImageUnits is expected to already be capped by the gatherer;
// the web-search cap is applied here.
type CostInput struct {
	PromptTokens      int64
	CompletionTokens  int64
	OutputImageTokens int64
	InputImageUnits   int64
	OutputImageUnits  int64
	WebSearchUsed     bool
	WebSearchResults  int64
	Pricing           Pricing
}

// CostBreakdown is the deterministic result of ComputeCost.
type CostBreakdown struct {
	PromptTokens           int64
	TextCompletionTokens   int64
	OutputImageTokens      int64
	InputImageUnits        int64
	OutputImageUnits       int64
	BilledWebSearchResults int64

	PromptCost      decimal.Decimal
	CompletionCost  decimal.Decimal
	InputImageCost  decimal.Decimal
	OutputImageCost decimal.Decimal
	WebSearchCost   decimal.Decimal
	TotalCost       decimal.Decimal

	// OutputImageTokensInferred is set when OutputImageTokens was not
	// reported upstream and was inferred from the attachment count.
	OutputImageTokensInferred bool
}

// InferOutputImageTokens bridges providers that do not yet report
// per-image token counts: when the reported count is zero but output
// images exist, assume one token per image unit. This is a documented
// heuristic, not a guarantee; callers must record the inferred flag in
// provenance so stored rows can be told apart from reported values.
func InferOutputImageTokens(reported, outputImageUnits int64) (int64, bool) {
	if reported > 0 {
		return reported, false
	}
	if outputImageUnits > 0 {
		return outputImageUnits, true
	}
	return 0, false
}

// ComputeCost computes the full cost breakdown for one assistant
// message. All monetary arithmetic is fixed-point decimal; each
// component is rounded to six fractional digits half-up.
func ComputeCost(input CostInput) CostBreakdown {
	outputImageTokens, inferred := InferOutputImageTokens(input.OutputImageTokens, input.OutputImageUnits)

	// Output-image tokens are carved out of the completion count so the
	// same tokens are never billed at both the text rate and the image
	// rate.
	textCompletionTokens := input.CompletionTokens - outputImageTokens
	if textCompletionTokens < 0 {
		textCompletionTokens = 0
	}

	inputImageUnits := input.InputImageUnits
	if inputImageUnits > MaxBillableInputImages {
		inputImageUnits = MaxBillableInputImages
	}
	if inputImageUnits < 0 {
		inputImageUnits = 0
	}

	var billedResults int64
	if input.WebSearchUsed {
		billedResults = input.WebSearchResults
		if billedResults > MaxBillableWebSearchResults {
			billedResults = MaxBillableWebSearchResults
		}
		if billedResults < 0 {
			billedResults = 0
		}
	}

	out := CostBreakdown{
		PromptTokens:              input.PromptTokens,
		TextCompletionTokens:      textCompletionTokens,
		OutputImageTokens:         outputImageTokens,
		InputImageUnits:           inputImageUnits,
		OutputImageUnits:          input.OutputImageUnits,
		BilledWebSearchResults:    billedResults,
		OutputImageTokensInferred: inferred,

		PromptCost:      unitCost(input.PromptTokens, input.Pricing.PromptPrice),
		CompletionCost:  unitCost(textCompletionTokens, input.Pricing.CompletionPrice),
		InputImageCost:  unitCost(inputImageUnits, input.Pricing.InputImagePrice),
		OutputImageCost: unitCost(input.OutputImageUnits, input.Pricing.OutputImagePrice),
		WebSearchCost:   unitCost(billedResults, input.Pricing.WebSearchPrice),
	}

	out.TotalCost = out.PromptCost.
		Add(out.CompletionCost).
		Add(out.InputImageCost).
		Add(out.OutputImageCost).
		Add(out.WebSearchCost)
	return out
}

// unitCost multiplies a quantity by a unit price and rounds to the
// cost scale. decimal.Round is half-away-from-zero, which is half-up
// for the non-negative values handled here.
func unitCost(quantity int64, price decimal.Decimal) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(quantity)).Round(costScale)
}
