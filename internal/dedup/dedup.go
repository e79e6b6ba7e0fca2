// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup computes event identity keys and fuzzy title overlap, and
// collapses duplicate events within a batch and against the existing dataset.
package dedup

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

// keySeparator joins identity key fields. It is a control character that
// does not occur in dates, organization names, or titles.
const keySeparator = "\x1f"

// normalize applies NFKC, case folding, trimming, and whitespace collapsing.
func normalize(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// IdentityKey returns the exact-duplicate key of an event: the normalized
// date, organization, and model family (or title when no family is set).
func IdentityKey(e types.Event) string {
	name := e.ModelFamily
	if strings.TrimSpace(name) == "" {
		name = e.Title
	}
	return normalize(e.Date) + keySeparator + normalize(e.Organization) + keySeparator + normalize(name)
}

// DeduplicateAgainstExisting returns the candidates whose identity key does
// not occur in existing, preserving candidate order.
func DeduplicateAgainstExisting(candidates, existing []types.Event) []types.Event {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[IdentityKey(e)] = struct{}{}
	}

	result := make([]types.Event, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[IdentityKey(c)]; ok {
			continue
		}
		result = append(result, c)
	}
	return result
}

// KeyTerms returns the normalized set of comparison terms of a title.
func (r Rules) KeyTerms(title string) map[string]struct{} {
	s := normalize(title)
	for {
		joined := versionDotPattern.ReplaceAllString(s, "$1$2")
		if joined == s {
			break
		}
		s = joined
	}
	s = nonWordPattern.ReplaceAllString(s, " ")

	terms := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if r.FillerWords[w] {
			continue
		}
		terms[w] = struct{}{}
	}
	return terms
}

// TitleOverlap returns |A∩B| / min(|A|, |B|) over the key terms of two
// titles, or 0 when either title has no key terms.
func (r Rules) TitleOverlap(a, b string) float64 {
	ta, tb := r.KeyTerms(a), r.KeyTerms(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(min(len(ta), len(tb)))
}

// IsLikelyDuplicate reports whether two events describe the same release.
// A strong title overlap wins regardless of attribution, since outlets
// mis-attribute organizations; a moderate overlap also needs the
// organizations to contain one another.
func (r Rules) IsLikelyDuplicate(a, b types.Event) bool {
	overlap := r.TitleOverlap(a.Title, b.Title)
	if overlap >= r.StrongOverlap {
		return true
	}
	return overlap >= r.OrgOverlap && orgsRelated(a.Organization, b.Organization)
}

// orgsRelated reports whether one organization name contains the other,
// ignoring case. Empty names never relate.
func orgsRelated(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// MergeDuplicates greedily clusters events in input order. Each event is
// compared against the merged entries so far and folded into the first
// likely duplicate; the survivor is the higher impact level, then the
// earlier date, then the entry already kept. Sources of the dropped event
// are appended to the survivor. It returns the merged events and the
// number of events folded away.
func (r Rules) MergeDuplicates(events []types.Event) ([]types.Event, int) {
	var merged []types.Event
	folded := 0

	for _, e := range events {
		idx := -1
		for i := range merged {
			if r.IsLikelyDuplicate(merged[i], e) {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, e.Clone())
			continue
		}

		folded++
		kept, dropped := merged[idx], e
		if preferred(e, merged[idx]) {
			kept, dropped = e.Clone(), merged[idx]
		}
		kept.Sources = unionSources(kept.Sources, dropped.Sources)
		merged[idx] = kept
	}
	return merged, folded
}

// preferred reports whether candidate should replace current.
func preferred(candidate, current types.Event) bool {
	cr, kr := candidate.ImpactLevel.Rank(), current.ImpactLevel.Rank()
	if cr != kr {
		return cr > kr
	}
	return candidate.Date < current.Date
}

func unionSources(dst, src []types.Source) []types.Source {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s.URL] = true
	}
	for _, s := range src {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		dst = append(dst, s)
	}
	return dst
}

// KeyTerms applies DefaultRules.KeyTerms.
func KeyTerms(title string) map[string]struct{} { return DefaultRules.KeyTerms(title) }

// TitleOverlap applies DefaultRules.TitleOverlap.
func TitleOverlap(a, b string) float64 { return DefaultRules.TitleOverlap(a, b) }

// IsLikelyDuplicate applies DefaultRules.IsLikelyDuplicate.
func IsLikelyDuplicate(a, b types.Event) bool { return DefaultRules.IsLikelyDuplicate(a, b) }

// MergeDuplicates applies DefaultRules.MergeDuplicates.
func MergeDuplicates(events []types.Event) ([]types.Event, int) {
	return DefaultRules.MergeDuplicates(events)
}
