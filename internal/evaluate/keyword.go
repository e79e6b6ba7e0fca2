// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"regexp"
	"strings"
)

// KeywordRule is one rewrite step applied to a title when deriving a
// search keyword.
type KeywordRule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// KeywordRules are applied in order after the organization name is
// removed. Callers may replace the slice to tune keyword derivation.
var KeywordRules = []KeywordRule{
	{
		Name:    "release verbs",
		Pattern: regexp.MustCompile(`(?i)\b(generally available|available|releases?|released|launch(es|ed)?|announc(es|ed|ing)|introduc(es|ed|ing)|unveil(s|ed)?|debuts?|ships?|shipped|open-sources?|open-sourced|publish(es|ed)|rolls? out|rolled out|now)\b`),
		Replace: " ",
	},
	{
		Name:    "descriptor nouns",
		Pattern: regexp.MustCompile(`(?i)\b(open[- ]weights|models?|family|series|preview|release|version|update|api|the|a|an|new|its|of|for|with|and|in|on|to|ga)\b`),
		Replace: " ",
	},
	{
		Name:    "punctuation",
		Pattern: regexp.MustCompile(`[^\p{L}\p{N}.+\- ]+`),
		Replace: " ",
	},
	{
		Name:    "whitespace",
		Pattern: regexp.MustCompile(`\s+`),
		Replace: " ",
	},
}

// orgPattern matches org as a standalone word, with an optional possessive.
// Org names glued to a model name ("DeepSeek-R1") are left alone.
func orgPattern(org string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|\s)` + regexp.QuoteMeta(org) + `(?:'s|’s)?(?:[:,]|\s|$)`)
}

// Keyword derives a compact search keyword from an event title by
// removing the organization and release boilerplate. It returns the
// trimmed title when nothing survives.
func Keyword(title, org string) string {
	k := title
	if org = strings.TrimSpace(org); org != "" {
		k = orgPattern(org).ReplaceAllString(k, " ")
	}
	for _, r := range KeywordRules {
		k = r.Pattern.ReplaceAllString(k, r.Replace)
	}
	k = strings.Trim(k, " -.:,")
	if k == "" {
		return strings.TrimSpace(title)
	}
	return k
}
