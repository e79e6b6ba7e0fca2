// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/internal/llm"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

const nominationSystemPrompt = `You review a chronological slice of an AI milestone timeline. For each event decide whether it is a genuine milestone compared to its neighbors in this list: a release that changed what AI systems could do, how they were accessed, or how the field competed. Routine updates, minor versions, and incremental features are low.

Judge relatively. Most events in any slice are low.

Respond with JSON only, in this shape, with one entry for every index:
{"results": [{"index": 0, "significance": "high"}, {"index": 1, "significance": "low"}]}`

// Candidate is an event the model nominated as significant. It is not
// authoritative until corroborated.
type Candidate struct {
	Key   string
	Event types.Event
	Batch int
}

// nomination is one element of the model's response.
type nomination struct {
	Index        int    `json:"index"`
	Significance string `json:"significance"`
}

// nominate sends events to the model in chronological batches and returns
// the nominees with a record of every batch. A batch whose responses stay
// unusable after the configured retries nominates nothing.
func (ev *Evaluator) nominate(ctx context.Context, events []types.Event) ([]Candidate, []BatchRecord, error) {
	var (
		candidates []Candidate
		records    []BatchRecord
	)

	for b, start := 0, 0; start < len(events); b, start = b+1, start+ev.cfg.BatchSize {
		end := min(start+ev.cfg.BatchSize, len(events))
		batch := events[start:end]

		rec := BatchRecord{Index: b, Size: len(batch)}
		high, err := ev.nominateBatch(ctx, batch, &rec)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			rec.Fallback = true
			rec.Error = err.Error()
			zap.L().Warn("nomination batch fell back to all low",
				zap.Int("batch", b),
				zap.Int("attempts", rec.Attempts),
				zap.Error(err),
			)
		}

		for i, e := range batch {
			if !high[i] {
				continue
			}
			key := dedup.IdentityKey(e)
			candidates = append(candidates, Candidate{Key: key, Event: e, Batch: b})
			rec.Nominated = append(rec.Nominated, key)
		}
		records = append(records, rec)
	}

	return candidates, records, nil
}

// nominateBatch calls the model until a response covers every index or the
// retries run out.
func (ev *Evaluator) nominateBatch(ctx context.Context, batch []types.Event, rec *BatchRecord) (map[int]bool, error) {
	req := llm.Request{
		System:      nominationSystemPrompt,
		User:        renderBatch(batch),
		Temperature: ev.cfg.Temperature,
		MaxTokens:   ev.cfg.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= ev.cfg.NominationRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec.Attempts++

		raw, err := ev.complete(ctx, req)
		if err != nil {
			lastErr = eris.Wrap(err, "nomination call")
			continue
		}
		high, err := parseNominations(raw, len(batch))
		if err != nil {
			lastErr = err
			zap.L().Debug("retrying nomination batch", zap.Int("batch", rec.Index), zap.Error(err))
			continue
		}
		return high, nil
	}
	return nil, lastErr
}

func (ev *Evaluator) complete(ctx context.Context, req llm.Request) (string, error) {
	if ev.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ev.cfg.CallTimeout)
		defer cancel()
	}
	return ev.client.Complete(ctx, req)
}

func renderBatch(batch []types.Event) string {
	var b strings.Builder
	b.WriteString("Events (index. date | organization | title: description):\n")
	for i, e := range batch {
		fmt.Fprintf(&b, "%d. %s | %s | %s: %s\n", i, e.Date, e.Organization, e.Title, e.Description)
	}
	return b.String()
}

// parseNominations accepts {"results": [...]} or a bare array. Every index
// in [0, n) must appear exactly once with "high" or "low".
func parseNominations(raw string, n int) (map[int]bool, error) {
	body := llm.ExtractJSON(raw)
	if body == "" {
		return nil, eris.Wrap(types.ErrNominationParse, "no JSON value in response")
	}

	var results []nomination
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &results); err != nil {
			return nil, eris.Wrapf(types.ErrNominationParse, "decoding array: %v", err)
		}
	} else {
		var envelope struct {
			Results []nomination `json:"results"`
		}
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return nil, eris.Wrapf(types.ErrNominationParse, "decoding object: %v", err)
		}
		results = envelope.Results
	}

	high := make(map[int]bool, n)
	seen := make(map[int]bool, n)
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return nil, eris.Wrapf(types.ErrNominationParse, "index %d out of range [0,%d)", r.Index, n)
		}
		if seen[r.Index] {
			return nil, eris.Wrapf(types.ErrNominationParse, "index %d repeated", r.Index)
		}
		seen[r.Index] = true

		switch strings.ToLower(strings.TrimSpace(r.Significance)) {
		case "high":
			high[r.Index] = true
		case "low":
		default:
			return nil, eris.Wrapf(types.ErrNominationParse, "index %d: significance %q", r.Index, r.Significance)
		}
	}
	if len(seen) != n {
		return nil, eris.Wrapf(types.ErrNominationParse, "response covers %d of %d events", len(seen), n)
	}
	return high, nil
}
