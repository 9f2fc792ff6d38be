// Package cost prices Claude token usage and totals it across a run.
package cost

import (
	"sync"
)

// Rates holds per-model pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

var defaultCalc = NewCalculator(DefaultRates())

// Default returns a Calculator over DefaultRates.
func Default() *Calculator {
	return defaultCalc
}

// Claude computes the cost of one Messages call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// DefaultRates returns the default pricing rates. Cache writes are priced
// at the one-hour TTL multiplier.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
		},
	}
}

// WithOverrides returns DefaultRates with the given models replaced or added.
func WithOverrides(overrides map[string]ModelRate) Rates {
	rates := DefaultRates()
	for model, r := range overrides {
		rates.Anthropic[model] = r
	}
	return rates
}

// Totals is a snapshot of a Tracker.
type Totals struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
	USD          float64
}

// Tracker accumulates usage across calls. It is safe for concurrent use.
type Tracker struct {
	calc *Calculator

	mu     sync.Mutex
	totals Totals
}

// NewTracker returns a Tracker pricing calls with calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Add records one call and returns its cost.
func (t *Tracker) Add(model string, input, output, cacheWrite, cacheRead int64) float64 {
	usd := t.calc.Claude(model, input, output, cacheWrite, cacheRead)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals.Calls++
	t.totals.InputTokens += input + cacheWrite + cacheRead
	t.totals.OutputTokens += output
	t.totals.USD += usd
	return usd
}

// Totals returns the accumulated usage.
func (t *Tracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals
}
