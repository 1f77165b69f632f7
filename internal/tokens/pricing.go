package tokens

import "strings"

// Rate is the price per 1K tokens in USD for one provider/model pair.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// priceTableVersion identifies the pricing snapshot below so cost estimates
// can be traced back when rates change.
const priceTableVersion = "2026-08"

// defaultRate is applied to provider/model pairs missing from the table.
// Unknown pairs never fail a record; they just get a conservative estimate.
var defaultRate = Rate{InputPer1K: 0.003, OutputPer1K: 0.015}

var priceTable = map[string]Rate{
	"bedrock/anthropic.claude-3-haiku-20240307-v1:0":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
	"bedrock/anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"bedrock/anthropic.claude-sonnet-4-20250514-v1:0":   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"openai/gpt-4o":                                     {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"openai/gpt-4o-mini":                                {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gemini/gemini-2.5-flash":                           {InputPer1K: 0.0003, OutputPer1K: 0.0025},
	"gemini/gemini-2.5-pro":                             {InputPer1K: 0.00125, OutputPer1K: 0.01},
}

// LookupRate returns the configured rate for a provider/model pair, falling
// back to defaultRate when the pair is not in the table.
func LookupRate(provider, model string) Rate {
	key := strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.TrimSpace(model)
	if rate, ok := priceTable[key]; ok {
		return rate
	}
	return defaultRate
}

// EstimateCost converts token counts to a USD estimate using the rate table.
func EstimateCost(provider, model string, inputTokens, outputTokens int32) float64 {
	rate := LookupRate(provider, model)
	return float64(inputTokens)/1000*rate.InputPer1K + float64(outputTokens)/1000*rate.OutputPer1K
}
