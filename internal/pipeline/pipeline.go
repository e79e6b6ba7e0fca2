// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs an update end to end: read newsletter items newer
// than the dataset cursor, extract candidate events, drop duplicates, and
// either write them into the dataset or hand them out for review.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/internal/evaluate"
	"github.com/pdiddy/milestone-engine/internal/extract"
	"github.com/pdiddy/milestone-engine/internal/feed"
	"github.com/pdiddy/milestone-engine/internal/metrics"
	"github.com/pdiddy/milestone-engine/internal/publish"
	"github.com/pdiddy/milestone-engine/internal/review"
	"github.com/pdiddy/milestone-engine/internal/timeline"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// ItemSource reads newsletter items.
type ItemSource interface {
	Fetch(ctx context.Context, opts feed.Options) ([]types.Item, error)
	ReadFile(path string, opts feed.Options) ([]types.Item, error)
}

// Extractor produces candidate events from items.
type Extractor interface {
	SetKnownNames(organizations, families []string)
	Extract(ctx context.Context, items []types.Item, w io.Writer) (extract.Result, error)
}

// Evaluator assigns significance to a full event set.
type Evaluator interface {
	Evaluate(ctx context.Context, events []types.Event, w io.Writer) (evaluate.Outcome, error)
}

// AuditSink persists evaluation audits.
type AuditSink interface {
	Save(ctx context.Context, a evaluate.Audit) error
}

// Options control one Run.
type Options struct {
	// DryRun computes and prints everything but writes nothing and calls
	// no publisher.
	DryRun bool

	// Full ignores the dataset cursor and reads every feed item.
	Full bool

	// Limit caps the number of items processed (0 = all).
	Limit int

	// File reads items from a local file instead of the feed.
	File string

	// Review renders the candidates as a review issue instead of
	// inserting them.
	Review bool

	// Evaluate re-scores the significance of the whole dataset after
	// insertion.
	Evaluate bool

	// Publish commits the updated dataset and opens a pull request.
	Publish bool
}

// Result summarizes a run.
type Result struct {
	DryRun    bool
	StorePath string

	Items         int
	Extracted     int
	Skipped       int
	ParseFailures int
	Failed        int
	Merged        int
	Duplicates    int
	OutOfRange    int
	Inserted      int

	// Candidates are the new events after deduplication.
	Candidates []types.Event

	// Audit is the evaluation record when the run evaluated.
	Audit         evaluate.Audit
	RunID         string
	Promoted      int
	ImpactChanges int

	NewPath   string
	Renamed   bool
	Rewritten []string

	ReviewDocument string
	IssueURL       string
	PullRequestURL string
}

// Pipeline wires the stages of an update. Items and Extractor are
// required; the remaining collaborators are needed only by the options
// that use them.
type Pipeline struct {
	Store     types.StoreConfig
	Items     ItemSource
	Extractor Extractor
	Evaluator Evaluator
	Publisher publish.Publisher
	Audits    AuditSink
	Metrics   *metrics.Run

	out io.Writer
	now func() time.Time
}

// New creates a Pipeline writing progress to out.
func New(store types.StoreConfig, items ItemSource, x Extractor, out io.Writer) *Pipeline {
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		Store:     store,
		Items:     items,
		Extractor: x,
		out:       out,
		now:       time.Now,
	}
}

// Run performs one update.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	res := Result{DryRun: opts.DryRun}

	if err := p.check(opts); err != nil {
		return res, err
	}

	path, t, err := p.load()
	if err != nil {
		return res, err
	}
	res.StorePath = path

	items, err := p.readItems(ctx, t, opts)
	if err != nil {
		return res, err
	}
	res.Items = len(items)
	p.record(func(m *metrics.Run) { m.Items.Add(float64(len(items))) })
	fmt.Fprintf(p.out, "%d items to process (cursor %s)\n", len(items), t.AsOf)
	if len(items) == 0 {
		return res, nil
	}

	organizations, families := timeline.KnownNames(t)
	p.Extractor.SetKnownNames(organizations, families)
	xr, err := p.Extractor.Extract(ctx, items, p.out)
	if err != nil {
		return res, err
	}
	res.Extracted = len(xr.Events)
	res.Skipped = xr.Skipped
	res.ParseFailures = xr.ParseFailures
	res.Failed = xr.Failed

	candidates, merged, duplicates := newEvents(xr.Events, timeline.AllEvents(t))
	candidates, res.OutOfRange = withinRange(t, candidates)
	res.Merged = merged
	res.Duplicates = duplicates
	res.Candidates = candidates
	p.record(func(m *metrics.Run) {
		m.AddEvents(metrics.OutcomeExtracted, res.Extracted)
		m.AddEvents(metrics.OutcomeSkipped, res.Skipped)
		m.AddEvents(metrics.OutcomeMerged, merged)
		m.AddEvents(metrics.OutcomeDuplicate, duplicates)
		m.AddEvents(metrics.OutcomeOutOfRange, res.OutOfRange)
	})
	fmt.Fprintf(p.out, "%d extracted, %d skipped, %d merged, %d already known, %d before range, %d new\n",
		res.Extracted, res.Skipped, merged, duplicates, res.OutOfRange, len(candidates))

	if opts.Review {
		return p.review(ctx, res, filepath.Base(path), opts)
	}
	return p.update(ctx, t, res, opts)
}

// check fails before any network traffic when an option lacks its
// collaborator.
func (p *Pipeline) check(opts Options) error {
	if p.Items == nil || p.Extractor == nil {
		return eris.Wrap(types.ErrConfiguration, "pipeline needs an item source and an extractor")
	}
	if opts.Evaluate && p.Evaluator == nil {
		return eris.Wrap(types.ErrConfiguration, "evaluation requested without an evaluator")
	}
	if (opts.Review || opts.Publish) && p.Publisher == nil && !opts.DryRun {
		return eris.Wrap(types.ErrConfiguration, "publishing requested without a publisher")
	}
	if opts.Review && opts.Publish {
		return eris.Wrap(types.ErrConfiguration, "review and publish are exclusive")
	}
	return nil
}

func (p *Pipeline) load() (string, *types.Timeline, error) {
	path, err := timeline.Locate(p.Store.DataDir)
	if err != nil {
		return "", nil, err
	}
	t, err := timeline.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, t, nil
}

// readItems applies the dataset cursor: items published after midnight of
// AsOf are read, so the AsOf day itself is read again.
func (p *Pipeline) readItems(ctx context.Context, t *types.Timeline, opts Options) ([]types.Item, error) {
	fo := feed.Options{Full: opts.Full, Limit: opts.Limit}
	if !opts.Full {
		after, _, err := types.ParseDate(t.AsOf)
		if err != nil {
			return nil, eris.Wrapf(types.ErrValidation, "dataset asOf %q: %v", t.AsOf, err)
		}
		fo.After = after
	}
	if opts.File != "" {
		return p.Items.ReadFile(opts.File, fo)
	}
	return p.Items.Fetch(ctx, fo)
}

// newEvents merges near-duplicates among extracted, then drops events
// whose identity key is already in existing or repeats within the batch.
// It returns the new events, the number merged away, and the number
// dropped as duplicates.
func newEvents(extracted, existing []types.Event) ([]types.Event, int, int) {
	merged, folded := dedup.MergeDuplicates(extracted)
	fresh := dedup.DeduplicateAgainstExisting(merged, existing)

	kept := make(map[string]bool, len(fresh))
	out := make([]types.Event, 0, len(fresh))
	for _, e := range fresh {
		key := dedup.IdentityKey(e)
		if kept[key] {
			logDropped("repeated in batch", e)
			continue
		}
		kept[key] = true
		out = append(out, e)
	}
	if len(fresh) < len(merged) {
		for _, e := range merged {
			if !kept[dedup.IdentityKey(e)] {
				logDropped("already in dataset", e)
			}
		}
	}
	return out, folded, len(merged) - len(out)
}

// withinRange drops events dated before the dataset's range start. It
// returns the kept events and the number dropped.
func withinRange(t *types.Timeline, events []types.Event) ([]types.Event, int) {
	kept := make([]types.Event, 0, len(events))
	for _, e := range events {
		if !timeline.InRange(t, e) {
			logDropped("before range start", e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(events) - len(kept)
}

// update inserts the candidates, optionally re-evaluates, and saves.
func (p *Pipeline) update(ctx context.Context, t *types.Timeline, res Result, opts Options) (Result, error) {
	if len(res.Candidates) == 0 && !opts.Evaluate {
		fmt.Fprintln(p.out, "no new events; dataset unchanged")
		return res, nil
	}

	now := p.now()
	next, err := timeline.Insert(t, res.Candidates, now)
	if err != nil {
		return res, err
	}
	res.Inserted = len(res.Candidates)

	if opts.Evaluate {
		next, err = p.evaluate(ctx, next, &res, opts.DryRun)
		if err != nil {
			return res, err
		}
	}

	if res.Inserted == 0 && res.ImpactChanges == 0 {
		fmt.Fprintln(p.out, "no changes; dataset unchanged")
		return res, nil
	}
	if err := p.save(ctx, next, &res, opts); err != nil {
		return res, err
	}
	p.record(func(m *metrics.Run) { m.AddEvents(metrics.OutcomeInserted, res.Inserted) })
	return res, nil
}

// evaluate scores the month events of t and returns t with the new levels.
func (p *Pipeline) evaluate(ctx context.Context, t *types.Timeline, res *Result, dryRun bool) (*types.Timeline, error) {
	before := timeline.MonthEvents(t)
	outcome, err := p.Evaluator.Evaluate(ctx, before, p.out)
	if err != nil {
		return nil, err
	}

	res.Audit = outcome.Audit
	res.RunID = outcome.Audit.RunID
	res.Promoted = outcome.Promoted()
	res.ImpactChanges = impactChanges(before, outcome.Events)
	p.record(func(m *metrics.Run) {
		m.Nominated.Add(float64(len(outcome.Audit.Candidates)))
		m.Promoted.Add(float64(res.Promoted))
		for _, c := range outcome.Audit.Candidates {
			for _, r := range c.Readings {
				if r.Error != "" {
					m.SignalFailures.WithLabelValues(r.Source).Inc()
				}
			}
		}
	})
	fmt.Fprintf(p.out, "evaluation %s: %d promoted, %d impact levels changed\n",
		res.RunID, res.Promoted, res.ImpactChanges)

	if !dryRun && p.Audits != nil {
		if err := p.Audits.Save(ctx, outcome.Audit); err != nil {
			return nil, err
		}
	}

	next, _ := timeline.Replace(t, outcome.Events, p.now())
	return next, nil
}

// impactChanges counts events whose level differs between the two sets,
// which are in the same order.
func impactChanges(before, after []types.Event) int {
	n := 0
	for i := range before {
		if i < len(after) && before[i].ImpactLevel != after[i].ImpactLevel {
			n++
		}
	}
	return n
}

// save writes next, rewrites references to a renamed dataset, and
// publishes when asked. A dry run only reports the target path.
func (p *Pipeline) save(ctx context.Context, next *types.Timeline, res *Result, opts Options) error {
	if opts.DryRun {
		res.NewPath = filepath.Join(p.Store.DataDir, timeline.DeriveFileName(next))
		res.Renamed = filepath.Clean(res.NewPath) != filepath.Clean(res.StorePath)
		fmt.Fprintf(p.out, "dry run: would write %s\n", res.NewPath)
		return nil
	}

	newPath, renamed, err := timeline.Save(p.Store.DataDir, res.StorePath, next)
	if err != nil {
		return err
	}
	res.NewPath = newPath
	res.Renamed = renamed
	fmt.Fprintf(p.out, "wrote %s\n", newPath)

	files := []string{newPath}
	if renamed {
		files = append(files, res.StorePath)
		rewritten, err := publish.RewriteReferences(p.Store.ReferenceFiles, res.StorePath, newPath)
		if err != nil {
			return err
		}
		res.Rewritten = rewritten
		files = append(files, rewritten...)
		for _, f := range rewritten {
			fmt.Fprintf(p.out, "updated reference in %s\n", f)
		}
	}

	if !opts.Publish {
		return nil
	}
	title := fmt.Sprintf("Update AI milestones to %s", next.RangeEndInclusive)
	url, err := p.Publisher.PublishChanges(ctx, files, title, summary(*res))
	if err != nil {
		return err
	}
	res.PullRequestURL = url
	fmt.Fprintf(p.out, "opened %s\n", url)
	return nil
}

// review renders the candidates and opens an issue with them.
func (p *Pipeline) review(ctx context.Context, res Result, storeFile string, opts Options) (Result, error) {
	if len(res.Candidates) == 0 {
		fmt.Fprintln(p.out, "no new events; nothing to review")
		return res, nil
	}

	now := p.now()
	doc, err := review.Render(res.Candidates, review.Meta{
		GeneratedAt: now,
		Items:       res.Items,
		StoreFile:   storeFile,
	})
	if err != nil {
		return res, err
	}
	res.ReviewDocument = doc

	if opts.DryRun {
		fmt.Fprintln(p.out, doc)
		return res, nil
	}

	title := fmt.Sprintf("Milestone candidates %s (%d)", now.Format("2006-01-02"), len(res.Candidates))
	url, err := p.Publisher.CreateIssue(ctx, title, doc)
	if err != nil {
		return res, err
	}
	res.IssueURL = url
	fmt.Fprintf(p.out, "opened %s\n", url)
	return res, nil
}

// summary is the pull request body.
func summary(res Result) string {
	s := fmt.Sprintf("Automated milestone update.\n\n"+
		"- Items processed: %d\n- Events extracted: %d\n- Merged: %d\n- Already known: %d\n- Inserted: %d\n",
		res.Items, res.Extracted, res.Merged, res.Duplicates, res.Inserted)
	if res.RunID != "" {
		s += fmt.Sprintf("- Evaluation run: %s (%d promoted)\n", res.RunID, res.Promoted)
	}
	if len(res.Candidates) > 0 {
		s += "\nNew events:\n"
		for _, e := range res.Candidates {
			s += fmt.Sprintf("- %s %s: %s\n", e.Date, e.Organization, e.Title)
		}
	}
	return s
}

func (p *Pipeline) record(fn func(m *metrics.Run)) {
	if p.Metrics != nil {
		fn(p.Metrics)
	}
}

func logDropped(reason string, e types.Event) {
	zap.L().Info("dropping event",
		zap.String("reason", reason),
		zap.String("key", dedup.IdentityKey(e)),
		zap.String("title", e.Title),
	)
}
