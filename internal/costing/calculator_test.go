package costing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func price(s string) decimal.Decimal {
	d, errParse := decimal.NewFromString(s)
	if errParse != nil {
		panic(errParse)
	}
	return d
}

func TestComputeCostRoundsHalfUpAtSixDecimals(t *testing.T) {
	out := ComputeCost(CostInput{
		PromptTokens: 7,
		Pricing:      Pricing{PromptPrice: price("0.00000250")},
	})

	// 7 * 0.0000025 = 0.0000175, sixth decimal rounds half-up to 0.000018.
	if want := price("0.000018"); !out.PromptCost.Equal(want) {
		t.Fatalf("prompt cost = %s, want %s", out.PromptCost, want)
	}
	if !out.TotalCost.Equal(out.PromptCost) {
		t.Fatalf("total cost = %s, want %s", out.TotalCost, out.PromptCost)
	}
}

func TestComputeCostTextTokensWithoutImages(t *testing.T) {
	out := ComputeCost(CostInput{
		CompletionTokens: 1033,
		Pricing:          Pricing{CompletionPrice: price("0.0000015")},
	})

	if out.TextCompletionTokens != 1033 {
		t.Fatalf("text completion tokens = %d, want 1033", out.TextCompletionTokens)
	}
	if out.OutputImageTokensInferred {
		t.Fatal("heuristic flagged with no output images")
	}
	// 1033 * 0.0000015 = 0.0015495 -> 0.001550.
	if want := price("0.001550"); !out.CompletionCost.Equal(want) {
		t.Fatalf("completion cost = %s, want %s", out.CompletionCost, want)
	}
}

func TestComputeCostInfersOutputImageTokens(t *testing.T) {
	out := ComputeCost(CostInput{
		CompletionTokens:  50,
		OutputImageTokens: 0,
		OutputImageUnits:  2,
		Pricing: Pricing{
			CompletionPrice:  price("0.0000015"),
			OutputImagePrice: price("0.00003"),
		},
	})

	if out.OutputImageTokens != 2 {
		t.Fatalf("output image tokens = %d, want 2", out.OutputImageTokens)
	}
	if out.TextCompletionTokens != 48 {
		t.Fatalf("text completion tokens = %d, want 48", out.TextCompletionTokens)
	}
	if !out.OutputImageTokensInferred {
		t.Fatal("heuristic not flagged")
	}
	if want := price("0.00006"); !out.OutputImageCost.Equal(want) {
		t.Fatalf("output image cost = %s, want %s", out.OutputImageCost, want)
	}
}

func TestComputeCostReportedOutputImageTokensNotInferred(t *testing.T) {
	out := ComputeCost(CostInput{
		CompletionTokens:  1290,
		OutputImageTokens: 1290,
		OutputImageUnits:  1,
		Pricing:           Pricing{CompletionPrice: price("0.0000015")},
	})

	if out.TextCompletionTokens != 0 {
		t.Fatalf("text completion tokens = %d, want 0", out.TextCompletionTokens)
	}
	if out.OutputImageTokensInferred {
		t.Fatal("heuristic flagged for a reported token count")
	}
}

func TestComputeCostCapsInputImages(t *testing.T) {
	out := ComputeCost(CostInput{
		InputImageUnits: 5,
		Pricing:         Pricing{InputImagePrice: price("0.001")},
	})

	if out.InputImageUnits != 3 {
		t.Fatalf("input image units = %d, want 3", out.InputImageUnits)
	}
	if want := price("0.003"); !out.InputImageCost.Equal(want) {
		t.Fatalf("input image cost = %s, want %s", out.InputImageCost, want)
	}
}

func TestComputeCostCapsWebSearchResults(t *testing.T) {
	out := ComputeCost(CostInput{
		WebSearchUsed:    true,
		WebSearchResults: 80,
		Pricing:          Pricing{WebSearchPrice: price("0.004")},
	})

	if out.BilledWebSearchResults != 50 {
		t.Fatalf("billed results = %d, want 50", out.BilledWebSearchResults)
	}
	if want := price("0.2"); !out.WebSearchCost.Equal(want) {
		t.Fatalf("web search cost = %s, want %s", out.WebSearchCost, want)
	}
}

func TestComputeCostSkipsWebSearchWhenUnused(t *testing.T) {
	out := ComputeCost(CostInput{
		WebSearchUsed:    false,
		WebSearchResults: 10,
		Pricing:          Pricing{WebSearchPrice: price("0.004")},
	})

	if out.BilledWebSearchResults != 0 {
		t.Fatalf("billed results = %d, want 0", out.BilledWebSearchResults)
	}
	if !out.WebSearchCost.IsZero() {
		t.Fatalf("web search cost = %s, want 0", out.WebSearchCost)
	}
}

func TestComputeCostEndToEndHelloTurn(t *testing.T) {
	out := ComputeCost(CostInput{
		PromptTokens:     7,
		CompletionTokens: 1033,
		Pricing: Pricing{
			PromptPrice:     price("0.0000005"),
			CompletionPrice: price("0.0000015"),
		},
	})

	if want := price("0.000004"); !out.PromptCost.Equal(want) {
		t.Fatalf("prompt cost = %s, want %s", out.PromptCost, want)
	}
	if want := price("0.001550"); !out.CompletionCost.Equal(want) {
		t.Fatalf("completion cost = %s, want %s", out.CompletionCost, want)
	}
	if want := price("0.001554"); !out.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", out.TotalCost, want)
	}
}

func TestComputeCostZeroPricingDegrades(t *testing.T) {
	out := ComputeCost(CostInput{
		PromptTokens:     100,
		CompletionTokens: 200,
		InputImageUnits:  2,
		WebSearchUsed:    true,
		WebSearchResults: 5,
	})

	if !out.TotalCost.IsZero() {
		t.Fatalf("total cost = %s, want 0", out.TotalCost)
	}
}
