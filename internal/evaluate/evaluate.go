// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate assigns significance to timeline events in two stages.
// Nomination asks the model which events stand out among their
// chronological neighbors; corroboration promotes a nominee only when an
// external attention signal clears its threshold.
package evaluate

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/internal/llm"
	"github.com/pdiddy/milestone-engine/internal/signal"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	defaultBatchSize         = 40
	defaultNominationRetries = 3
	defaultMaxTokens         = 4096
)

// Evaluator runs both stages.
type Evaluator struct {
	client  llm.Client
	sources []signal.Source
	cfg     types.EvaluationConfig
	now     func() time.Time
}

// New creates an Evaluator. Zero batch size, retry count, and token limit
// take defaults; a zero CandidateDelay means no delay.
func New(client llm.Client, sources []signal.Source, cfg types.EvaluationConfig) *Evaluator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.NominationRetries < 0 {
		cfg.NominationRetries = 0
	} else if cfg.NominationRetries == 0 {
		cfg.NominationRetries = defaultNominationRetries
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Evaluator{
		client:  client,
		sources: sources,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Outcome is the evaluated event set and its audit record.
type Outcome struct {
	// Events are copies of the input, in input order, with ImpactLevel
	// set to high for promoted events and low for all others.
	Events []types.Event
	Audit  Audit
}

// Promoted returns the number of high events.
func (o Outcome) Promoted() int {
	return len(o.Audit.Promoted)
}

// Evaluate nominates and corroborates events. Only context cancellation
// is returned as an error; model and signal failures degrade to low.
func (ev *Evaluator) Evaluate(ctx context.Context, events []types.Event, w io.Writer) (Outcome, error) {
	audit := Audit{
		RunID:             uuid.NewString(),
		StartedAt:         ev.now().UTC(),
		Model:             ev.cfg.Model,
		BatchSize:         ev.cfg.BatchSize,
		NominationRetries: ev.cfg.NominationRetries,
		SkipCorroboration: ev.cfg.SkipCorroboration,
		Events:            len(events),
	}

	ordered := chronological(events)
	candidates, batches, err := ev.nominate(ctx, ordered)
	if err != nil {
		return Outcome{}, err
	}
	audit.Batches = batches
	fmt.Fprintf(w, "nominated %d of %d events in %d batches\n", len(candidates), len(events), len(batches))

	if ev.cfg.SkipCorroboration {
		for _, c := range candidates {
			audit.Candidates = append(audit.Candidates, CandidateRecord{
				Key:      c.Key,
				Date:     c.Event.Date,
				Title:    c.Event.Title,
				Promoted: true,
			})
		}
	} else {
		records, err := ev.corroborate(ctx, candidates, w)
		if err != nil {
			return Outcome{}, err
		}
		audit.Candidates = records
	}
	audit.Promoted = audit.Reconstruct()

	return Outcome{Events: apply(events, audit.Promoted), Audit: audit}, nil
}

// chronological returns a date-ordered copy of events.
func chronological(events []types.Event) []types.Event {
	out := append([]types.Event(nil), events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// apply resets every event to low and raises the promoted keys to high.
func apply(events []types.Event, promoted []string) []types.Event {
	keys := make(map[string]bool, len(promoted))
	for _, k := range promoted {
		keys[k] = true
	}
	out := make([]types.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		c.ImpactLevel = types.ImpactLow
		if keys[dedup.IdentityKey(e)] {
			c.ImpactLevel = types.ImpactHigh
		}
		out[i] = c
	}
	return out
}
