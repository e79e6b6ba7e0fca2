// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package timeline loads, validates, transforms, and writes the canonical
// milestone dataset. Every transformation works on a deep copy and returns
// a new Timeline; the caller's value is never mutated.
package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	// FilePrefix starts every dataset filename.
	FilePrefix = "ai-milestones_"

	// FilePattern matches dataset files inside the data directory.
	FilePattern = FilePrefix + "*.json"

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// New returns an empty timeline whose range starts at rangeStart.
func New(rangeStart string, now time.Time) (*types.Timeline, error) {
	start, _, err := types.ParseDate(rangeStart)
	if err != nil {
		return nil, eris.Wrap(types.ErrValidation, err.Error())
	}
	return &types.Timeline{
		AsOf:              now.Format(dayLayout),
		RangeStart:        start.Format(dayLayout),
		RangeEndInclusive: start.Format(dayLayout),
		Months:            []types.MonthBucket{},
	}, nil
}

// Locate returns the lexicographically latest dataset file in dir. Dates
// embedded in the filenames sort correctly as strings.
func Locate(dir string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), FilePattern)
	if err != nil {
		return "", eris.Wrapf(err, "globbing %s", dir)
	}
	if len(matches) == 0 {
		return "", eris.Wrapf(types.ErrNotFound, "no %s file in %s", FilePattern, dir)
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[len(matches)-1]), nil
}

// Load reads and strictly validates a dataset file. Unknown fields and any
// schema violation fail with ErrValidation.
func Load(path string) (*types.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", path)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var t types.Timeline
	if err := dec.Decode(&t); err != nil {
		return nil, eris.Wrapf(types.ErrValidation, "parsing %s: %v", path, err)
	}
	if err := Validate(&t); err != nil {
		return nil, eris.Wrapf(err, "validating %s", path)
	}
	return &t, nil
}

// Validate checks every structural invariant of the timeline and reports
// all violations in one ErrValidation.
func Validate(t *types.Timeline) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for name, v := range map[string]string{
		"asOf":              t.AsOf,
		"rangeStart":        t.RangeStart,
		"rangeEndInclusive": t.RangeEndInclusive,
	} {
		if _, err := time.Parse(dayLayout, v); err != nil {
			add("%s %q is not YYYY-MM-DD", name, v)
		}
	}

	for _, e := range t.ContextBefore {
		if err := e.Validate(); err != nil {
			add("contextBefore: %v", err)
		}
	}

	firstMonth := types.MonthKey(t.RangeStart)
	prevMonth := ""
	for _, b := range t.Months {
		if _, err := time.Parse(monthLayout, b.Month); err != nil {
			add("month key %q is not YYYY-MM", b.Month)
		}
		if t.RangeStart != "" && b.Month < firstMonth {
			add("month %q is before rangeStart %s", b.Month, t.RangeStart)
		}
		if b.Month <= prevMonth {
			add("month %q out of order after %q", b.Month, prevMonth)
		}
		prevMonth = b.Month

		for i, e := range b.Events {
			if err := e.Validate(); err != nil {
				add("%s: %v", b.Month, err)
				continue
			}
			if types.MonthKey(e.Date) != b.Month {
				add("%s: event %q dated %s is in the wrong bucket", b.Month, e.Title, e.Date)
			}
			if i > 0 && e.Date < b.Events[i-1].Date {
				add("%s: event %q out of date order", b.Month, e.Title)
			}
		}
	}

	if maxDate, ok := maxEventDate(t); ok && t.RangeEndInclusive != "" && maxDate > t.RangeEndInclusive {
		add("rangeEndInclusive %s is before latest event %s", t.RangeEndInclusive, maxDate)
	}

	seen := make(map[string]string)
	for _, e := range AllEvents(t) {
		key := dedup.IdentityKey(e)
		if prev, ok := seen[key]; ok {
			add("events %q and %q share identity %q", prev, e.Title, strings.ReplaceAll(key, "\x1f", "|"))
			continue
		}
		seen[key] = e.Title
	}

	if len(problems) > 0 {
		return eris.Wrapf(types.ErrValidation, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// AllEvents returns the context-before events followed by every month
// bucket in order. It is the universe new candidates are deduplicated against.
func AllEvents(t *types.Timeline) []types.Event {
	n := len(t.ContextBefore)
	for _, b := range t.Months {
		n += len(b.Events)
	}
	all := make([]types.Event, 0, n)
	all = append(all, t.ContextBefore...)
	for _, b := range t.Months {
		all = append(all, b.Events...)
	}
	return all
}

// MonthEvents returns only the events inside month buckets, in order.
func MonthEvents(t *types.Timeline) []types.Event {
	var events []types.Event
	for _, b := range t.Months {
		events = append(events, b.Events...)
	}
	return events
}

// InRange reports whether e belongs in a month bucket of t. Events dated
// before the month of RangeStart belong to the read-only context.
func InRange(t *types.Timeline, e types.Event) bool {
	return t.RangeStart == "" || types.MonthKey(e.Date) >= types.MonthKey(t.RangeStart)
}

// Insert returns a copy of t with events placed into their month buckets.
// New buckets are created in sorted position and each touched bucket is
// re-sorted by date. AsOf becomes now; RangeEndInclusive moves forward to
// the latest event date and never moves back. An invalid event, one dated
// before the range, or one whose identity key is already present fails the
// whole insertion.
func Insert(t *types.Timeline, events []types.Event, now time.Time) (*types.Timeline, error) {
	c := t.Clone()

	keys := make(map[string]bool)
	for _, e := range AllEvents(c) {
		keys[dedup.IdentityKey(e)] = true
	}

	for _, e := range events {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if !InRange(c, e) {
			return nil, eris.Wrapf(types.ErrValidation, "event %q (%s) is before rangeStart %s", e.Title, e.Date, c.RangeStart)
		}
		key := dedup.IdentityKey(e)
		if keys[key] {
			return nil, eris.Wrapf(types.ErrValidation, "event %q (%s) already in timeline", e.Title, e.Date)
		}
		keys[key] = true

		idx := bucketIndex(c, types.MonthKey(e.Date))
		b := &c.Months[idx]
		b.Events = append(b.Events, e.Clone())
		sort.SliceStable(b.Events, func(i, j int) bool {
			return b.Events[i].Date < b.Events[j].Date
		})
	}

	touch(c, now)
	return c, nil
}

// Replace returns a copy of t where every month event whose identity key
// matches one of events is replaced by it. Events without a match are
// ignored. It returns the number of replaced events.
func Replace(t *types.Timeline, events []types.Event, now time.Time) (*types.Timeline, int) {
	byKey := make(map[string]types.Event, len(events))
	for _, e := range events {
		byKey[dedup.IdentityKey(e)] = e
	}

	c := t.Clone()
	replaced := 0
	for bi := range c.Months {
		for ei, e := range c.Months[bi].Events {
			if r, ok := byKey[dedup.IdentityKey(e)]; ok {
				c.Months[bi].Events[ei] = r.Clone()
				replaced++
			}
		}
	}
	touch(c, now)
	return c, replaced
}

// bucketIndex returns the index of the month bucket, inserting an empty
// one in sorted position when absent.
func bucketIndex(t *types.Timeline, month string) int {
	i := sort.Search(len(t.Months), func(i int) bool {
		return t.Months[i].Month >= month
	})
	if i < len(t.Months) && t.Months[i].Month == month {
		return i
	}
	t.Months = append(t.Months, types.MonthBucket{})
	copy(t.Months[i+1:], t.Months[i:])
	t.Months[i] = types.MonthBucket{Month: month, Events: []types.Event{}}
	return i
}

// touch sets AsOf and advances RangeEndInclusive.
func touch(t *types.Timeline, now time.Time) {
	t.AsOf = now.Format(dayLayout)
	if maxDate, ok := maxEventDate(t); ok && maxDate > t.RangeEndInclusive {
		t.RangeEndInclusive = maxDate
	}
}

// maxEventDate returns the latest month-bucket event date expanded to a
// full YYYY-MM-DD (partial dates expand to their first day).
func maxEventDate(t *types.Timeline) (string, bool) {
	var latest time.Time
	found := false
	for _, b := range t.Months {
		for _, e := range b.Events {
			d, _, err := types.ParseDate(e.Date)
			if err != nil {
				continue
			}
			if !found || d.After(latest) {
				latest, found = d, true
			}
		}
	}
	if !found {
		return "", false
	}
	return latest.Format(dayLayout), true
}

// DeriveFileName returns the dataset filename for t. It depends only on
// RangeStart truncated to the month and RangeEndInclusive.
func DeriveFileName(t *types.Timeline) string {
	return fmt.Sprintf("%s%s_%s.json", FilePrefix, types.MonthKey(t.RangeStart), t.RangeEndInclusive)
}
