// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

func testEvents() []types.Event {
	return []types.Event{
		{
			Date: "2025-01-20", DatePrecision: types.PrecisionDay,
			Title: "DeepSeek-R1 released", Organization: "DeepSeek", ModelFamily: "DeepSeek-R1",
			Modalities: []string{"text"}, ReleaseType: types.ReleaseOpenWeights,
			Description: "Open-weights reasoning model.", Rationale: "Matched o1 at a fraction of the cost.",
			ImpactLevel: types.ImpactHigh,
			Sources:     []types.Source{{Label: "DeepSeek", URL: "https://deepseek.com/r1"}},
		},
		{
			Date: "2025-01", DatePrecision: types.PrecisionMonth,
			Title: "Operator | research preview", Organization: "OpenAI",
			Modalities: []string{"agents"}, ReleaseType: types.ReleaseProduct,
			Description: "Browser agent.", ImpactLevel: types.ImpactLow,
			Sources: []types.Source{{Label: "OpenAI", URL: "https://openai.com/operator"}},
		},
	}
}

var testMeta = Meta{
	GeneratedAt: time.Date(2025, 1, 27, 9, 0, 0, 0, time.UTC),
	Items:       4,
	StoreFile:   "ai-milestones_2024-01_2025-01-20.json",
}

func TestRenderParse_RoundTrip(t *testing.T) {
	doc, err := Render(testEvents(), testMeta)
	require.NoError(t, err)

	got, skipped, err := Parse(doc)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, testEvents(), got)
}

func TestRender_Layout(t *testing.T) {
	doc, err := Render(testEvents(), testMeta)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "# Milestone candidates 2025-01-27\n"))
	assert.Contains(t, doc, "2 candidate events from 4 newsletter items, not yet in ai-milestones_2024-01_2025-01-20.json.")
	assert.Contains(t, doc, "| 1 | 2025-01-20 | DeepSeek | DeepSeek-R1 released | open-weights | high |")
	assert.Contains(t, doc, `| 2 | 2025-01 | OpenAI | Operator \| research preview | product | low |`)
	assert.Contains(t, doc, "- Model family: DeepSeek-R1")
	assert.Contains(t, doc, "- Sources: [DeepSeek](https://deepseek.com/r1)")
	assert.Less(t, strings.Index(doc, "## Details"), strings.Index(doc, StartMarker))
	assert.True(t, strings.HasSuffix(doc, EndMarker+"\n"))
}

func TestRender_Empty(t *testing.T) {
	doc, err := Render(nil, testMeta)
	require.NoError(t, err)

	got, _, err := Parse(doc)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParse_ToleratesHumanEdits(t *testing.T) {
	doc := `Reviewer notes: dropped the Operator entry, fixed the date.

` + StartMarker + `
[
  {"date": "2025-01-21", "datePrecision": "day", "title": "DeepSeek-R1 released", "organization": "DeepSeek",
   "modalities": ["text"], "releaseType": "open-weights", "description": "d", "rationale": "",
   "impactLevel": "high", "sources": [{"label": "DeepSeek", "url": "https://deepseek.com/r1"}]}
]
` + EndMarker + `

Approved by @reviewer`

	got, skipped, err := Parse(doc)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-01-21", got[0].Date)
}

func TestParse_SkipsUndecodableElements(t *testing.T) {
	doc := StartMarker + "\n```json\n[{\"date\": 2025}, {\"title\": \"ok\"}]\n```\n" + EndMarker

	got, skipped, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Title)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"no start marker", "just text", "no start marker"},
		{"no end marker", StartMarker + "\n[]", "no end marker"},
		{"end before start", EndMarker + "\n" + StartMarker + "\n[]", "no end marker"},
		{"not an array", StartMarker + "\n{\"events\": []}\n" + EndMarker, "not a JSON array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrValidation))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "[]", stripFence("\n```json\n[]\n```\n"))
	assert.Equal(t, "[]", stripFence("```\n[]\n```"))
	assert.Equal(t, "[]", stripFence("  []  "))
}
