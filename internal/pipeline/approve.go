// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/internal/metrics"
	"github.com/pdiddy/milestone-engine/internal/publish"
	"github.com/pdiddy/milestone-engine/internal/review"
	"github.com/pdiddy/milestone-engine/internal/timeline"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// ApproveResult summarizes an approval.
type ApproveResult struct {
	StorePath  string
	Parsed     int
	Invalid    int
	Duplicates int
	OutOfRange int
	Inserted   int
	NewPath    string
	Renamed    bool
	Rewritten  []string
}

// Approve inserts the events of an edited review document. Elements that
// fail to decode or validate are dropped; events already in the dataset
// or dated before its range are skipped.
func (p *Pipeline) Approve(ctx context.Context, doc string, dryRun bool) (ApproveResult, error) {
	var res ApproveResult

	parsed, undecodable, err := review.Parse(doc)
	if err != nil {
		return res, err
	}
	res.Parsed = len(parsed) + undecodable
	res.Invalid = undecodable

	var valid []types.Event
	for _, e := range parsed {
		if err := e.Validate(); err != nil {
			zap.L().Warn("dropping invalid approved event",
				zap.String("key", dedup.IdentityKey(e)),
				zap.String("title", e.Title),
				zap.Error(err),
			)
			res.Invalid++
			continue
		}
		valid = append(valid, e)
	}

	path, t, err := p.load()
	if err != nil {
		return res, err
	}
	res.StorePath = path

	fresh := dedup.DeduplicateAgainstExisting(valid, timeline.AllEvents(t))
	kept := make(map[string]bool, len(fresh))
	var events []types.Event
	for _, e := range fresh {
		key := dedup.IdentityKey(e)
		if kept[key] {
			logDropped("repeated in review", e)
			continue
		}
		kept[key] = true
		events = append(events, e)
	}
	res.Duplicates = len(valid) - len(events)
	events, res.OutOfRange = withinRange(t, events)
	fmt.Fprintf(p.out, "%d approved, %d invalid, %d already known, %d before range, %d new\n",
		res.Parsed, res.Invalid, res.Duplicates, res.OutOfRange, len(events))

	if len(events) == 0 {
		return res, nil
	}

	next, err := timeline.Insert(t, events, p.now())
	if err != nil {
		return res, err
	}
	res.Inserted = len(events)

	if dryRun {
		res.NewPath = filepath.Join(p.Store.DataDir, timeline.DeriveFileName(next))
		res.Renamed = filepath.Clean(res.NewPath) != filepath.Clean(path)
		fmt.Fprintf(p.out, "dry run: would write %s\n", res.NewPath)
		return res, nil
	}

	newPath, renamed, err := timeline.Save(p.Store.DataDir, path, next)
	if err != nil {
		return res, err
	}
	res.NewPath, res.Renamed = newPath, renamed
	if renamed {
		res.Rewritten, err = publish.RewriteReferences(p.Store.ReferenceFiles, path, newPath)
		if err != nil {
			return res, err
		}
	}
	p.record(func(m *metrics.Run) { m.AddEvents(metrics.OutcomeInserted, res.Inserted) })
	fmt.Fprintf(p.out, "wrote %s\n", newPath)
	return res, nil
}

// EvaluateStore re-scores the whole dataset without reading new items.
func (p *Pipeline) EvaluateStore(ctx context.Context, dryRun bool) (Result, error) {
	res := Result{DryRun: dryRun}
	if p.Evaluator == nil {
		return res, eris.Wrap(types.ErrConfiguration, "evaluation requested without an evaluator")
	}

	path, t, err := p.load()
	if err != nil {
		return res, err
	}
	res.StorePath = path

	next, err := p.evaluate(ctx, t, &res, dryRun)
	if err != nil {
		return res, err
	}
	if res.ImpactChanges == 0 {
		fmt.Fprintln(p.out, "no impact level changed; dataset unchanged")
		return res, nil
	}
	if err := p.save(ctx, next, &res, Options{DryRun: dryRun}); err != nil {
		return res, err
	}
	return res, nil
}
