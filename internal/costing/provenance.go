package costing

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Provenance describes the pricing basis and heuristics behind a stored
// cost row. It must be reproducible from stored data alone, without
// re-querying the live catalog, so every input the calculator saw is
// recorded here.
type Provenance struct {
	ModelID string `json:"model_id"`

	PromptPrice      string `json:"prompt_price"`
	CompletionPrice  string `json:"completion_price"`
	InputImagePrice  string `json:"input_image_price"`
	OutputImagePrice string `json:"output_image_price"`
	WebSearchPrice   string `json:"web_search_price"`

	PromptTokens           int64 `json:"prompt_tokens"`
	CompletionTokens       int64 `json:"completion_tokens"`
	TextCompletionTokens   int64 `json:"text_completion_tokens"`
	OutputImageTokens      int64 `json:"output_image_tokens"`
	InputImageUnits        int64 `json:"input_image_units"`
	OutputImageUnits       int64 `json:"output_image_units"`
	WebSearchResults       int64 `json:"web_search_results"`
	BilledWebSearchResults int64 `json:"billed_web_search_results"`

	// OutputImageTokensInferred flags the 1:1 unit-to-token heuristic,
	// which is not a guaranteed-correct value.
	OutputImageTokensInferred bool `json:"output_image_tokens_inferred"`
	WebSearchFallbackPrice    bool `json:"web_search_fallback_price,omitempty"`
	OutputImageFallbackPrice  bool `json:"output_image_fallback_price,omitempty"`
}

// BuildProvenance assembles the provenance payload for a computed
// breakdown against its original input.
func BuildProvenance(modelID string, input CostInput, breakdown CostBreakdown, webSearchFallback, outputImageFallback bool) Provenance {
	return Provenance{
		ModelID: modelID,

		PromptPrice:      input.Pricing.PromptPrice.String(),
		CompletionPrice:  input.Pricing.CompletionPrice.String(),
		InputImagePrice:  input.Pricing.InputImagePrice.String(),
		OutputImagePrice: input.Pricing.OutputImagePrice.String(),
		WebSearchPrice:   input.Pricing.WebSearchPrice.String(),

		PromptTokens:           input.PromptTokens,
		CompletionTokens:       input.CompletionTokens,
		TextCompletionTokens:   breakdown.TextCompletionTokens,
		OutputImageTokens:      breakdown.OutputImageTokens,
		InputImageUnits:        breakdown.InputImageUnits,
		OutputImageUnits:       breakdown.OutputImageUnits,
		WebSearchResults:       input.WebSearchResults,
		BilledWebSearchResults: breakdown.BilledWebSearchResults,

		OutputImageTokensInferred: breakdown.OutputImageTokensInferred,
		WebSearchFallbackPrice:    webSearchFallback,
		OutputImageFallbackPrice:  outputImageFallback,
	}
}

// JSON serializes the provenance for the jsonb column.
func (p Provenance) JSON() (datatypes.JSON, error) {
	payload, errMarshal := json.Marshal(p)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(payload), nil
}
