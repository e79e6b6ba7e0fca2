// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns newsletter items into candidate milestone events
// with one LLM completion per item, or per group of short items.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/llm"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	defaultShortItemChars = 1500
	defaultMaxBatchItems  = 5
	defaultMaxRetries     = 3
	defaultMaxTokens      = 4096
)

// Result holds the outcome of an extraction run. Skipped counts elements
// dropped by validation; ParseFailures counts responses that held no
// usable JSON; Failed counts prompts whose calls failed after retries.
type Result struct {
	Events        []types.Event
	Skipped       int
	ParseFailures int
	Failed        int
	Prompts       int
}

// Extractor calls the model over newsletter items.
type Extractor struct {
	client llm.Client
	cfg    types.ExtractionConfig

	// Organizations and Families are the spellings already in the dataset.
	Organizations []string
	Families      []string
}

// New creates an Extractor, filling zero config values with defaults.
func New(client llm.Client, cfg types.ExtractionConfig) *Extractor {
	if cfg.ShortItemChars <= 0 {
		cfg.ShortItemChars = defaultShortItemChars
	}
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = defaultMaxBatchItems
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Extractor{client: client, cfg: cfg}
}

// SetKnownNames sets the organization and family spellings offered to the
// model.
func (x *Extractor) SetKnownNames(organizations, families []string) {
	x.Organizations = organizations
	x.Families = families
}

// Extract runs the model over items and returns every valid event in item
// order. Per-item problems are counted, not returned; the error is non-nil
// only when ctx is cancelled.
func (x *Extractor) Extract(ctx context.Context, items []types.Item, w io.Writer) (Result, error) {
	var res Result

	system, err := renderSystemPrompt(x.Organizations, x.Families)
	if err != nil {
		return res, eris.Wrap(err, "rendering system prompt")
	}

	for _, group := range groupItems(items, x.cfg.ShortItemChars, x.cfg.MaxBatchItems) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		label := groupLabel(group)
		res.Prompts++

		user, err := renderItems(group)
		if err != nil {
			return res, eris.Wrapf(err, "rendering items %s", label)
		}

		raw, err := x.complete(ctx, llm.Request{
			System:      system,
			User:        user,
			Temperature: x.cfg.Temperature,
			MaxTokens:   x.cfg.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			zap.L().Warn("extraction call failed", zap.String("items", label), zap.Error(err))
			fmt.Fprintf(w, "failed  %s: %v\n", label, err)
			res.Failed++
			continue
		}

		elements, err := parseResponse(raw)
		if err != nil {
			zap.L().Warn("extraction response discarded", zap.String("items", label), zap.Error(err))
			fmt.Fprintf(w, "unparseable %s\n", label)
			res.ParseFailures++
			continue
		}

		events, skipped := convertEvents(elements, group)
		res.Events = append(res.Events, events...)
		res.Skipped += skipped
		fmt.Fprintf(w, "extracted %s (%d events, %d skipped)\n", label, len(events), skipped)
	}

	return res, nil
}

// complete applies the per-call timeout and retry policy.
func (x *Extractor) complete(ctx context.Context, req llm.Request) (string, error) {
	return callWithRetry(ctx, func(ctx context.Context) (string, error) {
		if x.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, x.cfg.CallTimeout)
			defer cancel()
		}
		return x.client.Complete(ctx, req)
	}, x.cfg.MaxRetries)
}

// groupItems gives each long item its own prompt and packs consecutive
// short items into groups of at most maxItems.
func groupItems(items []types.Item, shortChars, maxItems int) [][]types.Item {
	var groups [][]types.Item
	var pending []types.Item

	flush := func() {
		if len(pending) > 0 {
			groups = append(groups, pending)
			pending = nil
		}
	}

	for _, it := range items {
		if len(it.Text) >= shortChars {
			flush()
			groups = append(groups, []types.Item{it})
			continue
		}
		pending = append(pending, it)
		if len(pending) >= maxItems {
			flush()
		}
	}
	flush()
	return groups
}

func groupLabel(group []types.Item) string {
	ids := make([]string, len(group))
	for i, it := range group {
		ids[i] = it.ID
		if ids[i] == "" {
			ids[i] = it.Title
		}
	}
	return strings.Join(ids, ",")
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls fn with exponential backoff.
func callWithRetry(ctx context.Context, fn func(context.Context) (string, error), maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", eris.Wrapf(lastErr, "after %d retries", maxRetries)
}

// rawEvent is one element of the model's response. Item is the 1-based
// index of the item the event came from within a grouped prompt.
type rawEvent struct {
	types.Event
	Item int `json:"item"`
}

// parseResponse accepts a top-level array or an {"events": [...]} envelope,
// optionally fenced. Elements are returned undecoded so a single bad
// element does not discard the rest.
func parseResponse(raw string) ([]json.RawMessage, error) {
	body := llm.ExtractJSON(raw)
	if body == "" {
		return nil, eris.Wrap(types.ErrExtractionParse, "no JSON value in response")
	}

	var elements []json.RawMessage
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &elements); err != nil {
			return nil, eris.Wrapf(types.ErrExtractionParse, "decoding array: %v", err)
		}
		return elements, nil
	}

	var envelope struct {
		Events *[]json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, eris.Wrapf(types.ErrExtractionParse, "decoding object: %v", err)
	}
	if envelope.Events == nil {
		return nil, eris.Wrap(types.ErrExtractionParse, "object has no events array")
	}
	return *envelope.Events, nil
}

// convertEvents decodes, normalizes, and validates each element. Invalid
// elements are dropped and counted.
func convertEvents(elements []json.RawMessage, group []types.Item) ([]types.Event, int) {
	var events []types.Event
	skipped := 0

	for i, el := range elements {
		var re rawEvent
		if err := json.Unmarshal(el, &re); err != nil {
			zap.L().Warn("dropping malformed event", zap.Int("element", i), zap.Error(err))
			skipped++
			continue
		}

		e := normalize(re, group)
		if err := e.Validate(); err != nil {
			zap.L().Warn("dropping invalid event",
				zap.String("title", e.Title),
				zap.Error(err),
			)
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped
}

// normalize trims fields and fills what the model may leave out: the date
// precision implied by the date, a low impact level, and the item link as
// the source.
func normalize(re rawEvent, group []types.Item) types.Event {
	e := re.Event.Clone()
	e.Date = strings.TrimSpace(e.Date)
	e.Title = strings.TrimSpace(e.Title)
	e.Organization = strings.TrimSpace(e.Organization)
	e.ModelFamily = strings.TrimSpace(e.ModelFamily)
	e.Description = strings.TrimSpace(e.Description)
	e.Rationale = strings.TrimSpace(e.Rationale)

	if e.DatePrecision == "" {
		if _, precision, err := types.ParseDate(e.Date); err == nil {
			e.DatePrecision = precision
		}
	}
	if e.ImpactLevel == "" {
		e.ImpactLevel = types.ImpactLow
	}
	for i, m := range e.Modalities {
		e.Modalities[i] = strings.ToLower(strings.TrimSpace(m))
	}

	if len(e.Sources) == 0 {
		idx := re.Item - 1
		if len(group) == 1 {
			idx = 0
		}
		if idx >= 0 && idx < len(group) && group[idx].Link != "" {
			e.Sources = []types.Source{{Label: sourceLabel(group[idx]), URL: group[idx].Link}}
		}
	}
	return e
}

func sourceLabel(it types.Item) string {
	if it.Title != "" {
		return it.Title
	}
	return "Newsletter"
}
