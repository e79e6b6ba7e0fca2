// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package timeline

import (
	"sort"
	"strings"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

// MonthCount is the number of events in one bucket.
type MonthCount struct {
	Month  string `json:"month" yaml:"month"`
	Events int    `json:"events" yaml:"events"`
}

// Summary describes the contents of a timeline.
type Summary struct {
	AsOf              string                    `json:"asOf" yaml:"asOf"`
	RangeStart        string                    `json:"rangeStart" yaml:"rangeStart"`
	RangeEndInclusive string                    `json:"rangeEndInclusive" yaml:"rangeEndInclusive"`
	ContextEvents     int                       `json:"contextEvents" yaml:"contextEvents"`
	Events            int                       `json:"events" yaml:"events"`
	ByImpact          map[types.ImpactLevel]int `json:"byImpact" yaml:"byImpact"`
	Months            []MonthCount              `json:"months" yaml:"months"`
}

// Stats summarizes t.
func Stats(t *types.Timeline) Summary {
	s := Summary{
		AsOf:              t.AsOf,
		RangeStart:        t.RangeStart,
		RangeEndInclusive: t.RangeEndInclusive,
		ContextEvents:     len(t.ContextBefore),
		ByImpact:          make(map[types.ImpactLevel]int),
	}
	for _, b := range t.Months {
		s.Months = append(s.Months, MonthCount{Month: b.Month, Events: len(b.Events)})
		s.Events += len(b.Events)
		for _, e := range b.Events {
			s.ByImpact[e.ImpactLevel]++
		}
	}
	return s
}

// KnownNames returns the distinct organization and model family names in
// t, sorted. The extractor feeds them to the model to keep naming consistent.
func KnownNames(t *types.Timeline) (organizations, families []string) {
	orgSet := make(map[string]string)
	famSet := make(map[string]string)
	for _, e := range AllEvents(t) {
		addFirst(orgSet, e.Organization)
		addFirst(famSet, e.ModelFamily)
	}
	return sortedValues(orgSet), sortedValues(famSet)
}

// addFirst records name under its lower-cased form unless a spelling is
// already recorded.
func addFirst(set map[string]string, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	if _, ok := set[key]; !ok {
		set[key] = name
	}
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
