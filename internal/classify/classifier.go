// Package classify turns comment text into bank account closure attempts
// using an LLM.
package classify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/closure-tracker/internal/cost"
	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/resilience"
	"github.com/sells-group/closure-tracker/pkg/anthropic"
)

// ErrMalformedResponse means the model answered with something other than
// the closure_attempts document.
var ErrMalformedResponse = eris.New("classify: malformed model response")

// Options configures the Anthropic classifier.
type Options struct {
	// Vocabulary is rendered once into the cached system prompt.
	Vocabulary  []string
	Model       string
	MaxTokens   int64
	MaxAttempts int // one or less disables retry
	// Cost, when set, accumulates the priced usage of every call.
	Cost *cost.Tracker
}

// Classifier extracts closure attempts with the Anthropic Messages API.
type Classifier struct {
	client anthropic.Client
	opts   Options
	retry  resilience.RetryConfig
	system []anthropic.SystemBlock
}

// New returns a Classifier that calls client.
func New(client anthropic.Client, opts Options) *Classifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	retry := resilience.FromAttempts(opts.MaxAttempts, "anthropic", "classify")
	retry.ShouldRetry = shouldRetry
	return &Classifier{
		client: client,
		opts:   opts,
		retry:  retry,
		system: anthropic.BuildCachedSystemBlocks(BuildSystemPrompt(opts.Vocabulary)),
	}
}

// Classify returns the closure attempts described in text. learned lists bank
// names outside the vocabulary that the model should also prefer; they ride
// in the user turn so the cached system prompt stays identical across calls.
// An empty result is valid.
func (c *Classifier) Classify(ctx context.Context, text string, learned []string) ([]model.ClosureAttempt, error) {
	req := anthropic.MessageRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		System:    c.system,
		Messages:  []anthropic.Message{{Role: "user", Content: BuildUserMessage(text, learned)}},
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: create message")
	}
	u := resp.Usage
	var usd float64
	if c.opts.Cost != nil {
		usd = c.opts.Cost.Add(c.opts.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens)
	} else {
		usd = u.EstimateCost(c.opts.Model)
	}
	u.LogCost(c.opts.Model, "classify", usd)

	if resp.StopReason == "max_tokens" {
		return nil, eris.Wrapf(ErrMalformedResponse, "classify: response truncated at %d tokens", c.opts.MaxTokens)
	}
	return ParseAttempts(resp.Text())
}

// ParseAttempts decodes a closure_attempts document, tolerating code fences
// and prose around the JSON object.
func ParseAttempts(text string) ([]model.ClosureAttempt, error) {
	cleaned := cleanJSON(text)

	var doc struct {
		ClosureAttempts *[]struct {
			Success  *bool  `json:"success"`
			BankName string `json:"bank_name"`
			Method   string `json:"method"`
		} `json:"closure_attempts"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "classify: decode %q: %v", truncate(text, 200), err)
	}
	if doc.ClosureAttempts == nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "classify: no closure_attempts in %q", truncate(text, 200))
	}

	out := make([]model.ClosureAttempt, 0, len(*doc.ClosureAttempts))
	for i, a := range *doc.ClosureAttempts {
		bank := strings.Join(strings.Fields(a.BankName), " ")
		if bank == "" {
			return nil, eris.Wrapf(ErrMalformedResponse, "classify: attempt %d has no bank_name", i)
		}
		success := true
		if a.Success != nil {
			success = *a.Success
		}
		out = append(out, model.ClosureAttempt{
			Success:  success,
			BankName: bank,
			Method:   NormalizeMethod(a.Method),
		})
	}
	return out, nil
}

// shouldRetry retries transport failures and throttling or overload answers.
func shouldRetry(err error) bool {
	if resilience.IsTransient(err) {
		return true
	}
	code := anthropic.StatusCode(err)
	return resilience.IsTransientHTTPStatus(code) || code == 529
}

// cleanJSON strips markdown fences and surrounding prose from model output.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
