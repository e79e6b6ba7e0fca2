// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import "regexp"

// Rules holds the normalization rule set and thresholds used for fuzzy
// matching. The package-level functions use DefaultRules; callers that need
// different behaviour build their own Rules value.
type Rules struct {
	// FillerWords are dropped from titles before comparison.
	FillerWords map[string]bool

	// StrongOverlap marks a duplicate regardless of organization.
	StrongOverlap float64

	// OrgOverlap marks a duplicate when the organizations are substring-related.
	OrgOverlap float64
}

// DefaultRules is the rule set applied by TitleOverlap, IsLikelyDuplicate,
// and MergeDuplicates.
var DefaultRules = Rules{
	FillerWords: wordSet(
		"a", "an", "the", "and", "or", "of", "for", "with", "to", "in", "on", "by", "at", "its", "their",
		"new", "now", "first", "latest", "official", "officially",
		"release", "releases", "released", "launch", "launches", "launched",
		"announce", "announces", "announced", "introduce", "introduces", "introduced",
		"unveil", "unveils", "unveiled", "debut", "debuts", "ships", "rolls", "out",
		"model", "models", "version", "update", "updated", "available",
	),
	StrongOverlap: 0.8,
	OrgOverlap:    0.5,
}

// versionDotPattern joins digits split by a dot so "3.5" and "35" compare equal.
var versionDotPattern = regexp.MustCompile(`(\d)\.(\d)`)

// nonWordPattern matches runs of characters that are neither letters nor digits.
var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
