// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/milestone-engine/internal/signal"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// corroborate checks candidates one at a time. After every check but the
// last it pauses for CandidateDelay (zero disables the pause), so the next
// candidate starts only once the previous check and its delay are done.
// The sources for a single candidate are queried concurrently.
func (ev *Evaluator) corroborate(ctx context.Context, candidates []Candidate, w io.Writer) ([]CandidateRecord, error) {
	records := make([]CandidateRecord, 0, len(candidates))
	for i, c := range candidates {
		if i > 0 {
			if err := pause(ctx, ev.cfg.CandidateDelay); err != nil {
				return nil, err
			}
		}

		rec := CandidateRecord{
			Key:     c.Key,
			Date:    c.Event.Date,
			Title:   c.Event.Title,
			Keyword: Keyword(c.Event.Title, c.Event.Organization),
		}
		rec.Readings = ev.check(ctx, c.Event, rec.Keyword)
		rec.Promoted = corroborated(rec.Readings)
		records = append(records, rec)

		status := "not corroborated"
		if rec.Promoted {
			status = "promoted"
		}
		fmt.Fprintf(w, "%-16s %s (%s)\n", status, c.Event.Title, rec.Keyword)
	}
	return records, nil
}

// pause blocks for d from now. The limiter is drained on creation, so its
// single token comes back exactly d later.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	limiter := rate.NewLimiter(rate.Every(d), 1)
	limiter.Allow()
	return limiter.Wait(ctx)
}

// check queries every source for one event. Readings keep source order.
func (ev *Evaluator) check(ctx context.Context, e types.Event, keyword string) []signal.Reading {
	readings := make([]signal.Reading, len(ev.sources))

	date, _, err := types.ParseDate(e.Date)
	if err != nil {
		for i, src := range ev.sources {
			readings[i] = signal.Reading{Source: src.Name(), Threshold: src.Threshold(), Error: err.Error()}
		}
		zap.L().Warn("candidate date unusable", zap.String("title", e.Title), zap.Error(err))
		return readings
	}

	q := signal.Query{Keyword: keyword, Date: date, WindowDays: ev.cfg.Signals.WindowDays}
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range ev.sources {
		g.Go(func() error {
			readings[i] = signal.Check(gctx, src, q)
			return nil
		})
	}
	_ = g.Wait()
	return readings
}
