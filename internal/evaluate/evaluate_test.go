// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/internal/llm"
	"github.com/pdiddy/milestone-engine/internal/signal"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// --- fakes ---

type clientFunc func(ctx context.Context, req llm.Request) (string, error)

func (f clientFunc) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

// highFor answers every batch by marking the listed titles high.
func highFor(titles ...string) clientFunc {
	return func(_ context.Context, req llm.Request) (string, error) {
		var parts []string
		for _, line := range strings.Split(req.User, "\n") {
			var idx int
			if _, err := fmt.Sscanf(line, "%d.", &idx); err != nil {
				continue
			}
			sig := "low"
			for _, title := range titles {
				if strings.Contains(line, "| "+title+":") {
					sig = "high"
				}
			}
			parts = append(parts, fmt.Sprintf(`{"index": %d, "significance": %q}`, idx, sig))
		}
		return `{"results": [` + strings.Join(parts, ",") + `]}`, nil
	}
}

type fakeSource struct {
	name      string
	threshold float64
	values    map[string]float64
	err       error
	latency   time.Duration

	mu      sync.Mutex
	queries []signal.Query
}

func (f *fakeSource) Name() string       { return f.name }
func (f *fakeSource) Threshold() float64 { return f.threshold }
func (f *fakeSource) Measure(_ context.Context, q signal.Query) (float64, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	time.Sleep(f.latency)
	if f.err != nil {
		return 0, f.err
	}
	return f.values[q.Keyword], nil
}

func event(date, org, title string, impact types.ImpactLevel) types.Event {
	return types.Event{
		Date:          date,
		DatePrecision: types.PrecisionDay,
		Title:         title,
		Organization:  org,
		Modalities:    []string{"text"},
		ReleaseType:   types.ReleaseModel,
		Description:   title + ".",
		ImpactLevel:   impact,
		Sources:       []types.Source{{Label: org, URL: "https://example.com/" + org}},
	}
}

func testEvents() []types.Event {
	return []types.Event{
		event("2025-01-20", "DeepSeek", "DeepSeek-R1 released", types.ImpactMedium),
		event("2024-12-05", "OpenAI", "OpenAI releases o1", types.ImpactHigh),
		event("2025-01-23", "OpenAI", "OpenAI launches Operator", types.ImpactWatershed),
	}
}

func testConfig() types.EvaluationConfig {
	return types.EvaluationConfig{
		AIConfig:  types.AIConfig{Model: "test-model"},
		BatchSize: 40,
	}
}

func impacts(events []types.Event) map[string]types.ImpactLevel {
	m := make(map[string]types.ImpactLevel)
	for _, e := range events {
		m[e.Title] = e.ImpactLevel
	}
	return m
}

// --- Keyword ---

func TestKeyword(t *testing.T) {
	tests := []struct {
		title, org, want string
	}{
		{"OpenAI releases GPT-4.5", "OpenAI", "GPT-4.5"},
		{"Anthropic launches Claude 3.5 Sonnet model family", "Anthropic", "Claude 3.5 Sonnet"},
		{"Google's Gemini 2.0 Flash now generally available", "Google", "Gemini 2.0 Flash"},
		{"DeepSeek-R1 open-weights model released", "DeepSeek", "DeepSeek-R1"},
		{"Meta releases Llama 3.1 (405B)", "Meta", "Llama 3.1 405B"},
		{"New model released", "X", "New model released"},
		{"  Sora  ", "", "Sora"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Keyword(tt.title, tt.org))
		})
	}
}

func TestKeyword_Deterministic(t *testing.T) {
	a := Keyword("OpenAI launches Operator", "OpenAI")
	b := Keyword("OpenAI launches Operator", "OpenAI")
	assert.Equal(t, a, b)
	assert.Equal(t, "Operator", a)
}

// --- parseNominations ---

func TestParseNominations(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		n        int
		wantHigh []int
		wantErr  bool
	}{
		{"results envelope", `{"results":[{"index":0,"significance":"high"},{"index":1,"significance":"low"}]}`, 2, []int{0}, false},
		{"bare array", `[{"index":1,"significance":"HIGH"},{"index":0,"significance":"low"}]`, 2, []int{1}, false},
		{"fenced", "```json\n[{\"index\":0,\"significance\":\"low\"}]\n```", 1, nil, false},
		{"missing index", `{"results":[{"index":0,"significance":"high"}]}`, 2, nil, true},
		{"out of range", `[{"index":0,"significance":"low"},{"index":2,"significance":"low"}]`, 2, nil, true},
		{"repeated index", `[{"index":0,"significance":"low"},{"index":0,"significance":"high"}]`, 2, nil, true},
		{"bad label", `[{"index":0,"significance":"medium"}]`, 1, nil, true},
		{"garbage", "I think they are all important.", 1, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			high, err := parseNominations(tt.raw, tt.n)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrNominationParse))
				return
			}
			require.NoError(t, err)
			var got []int
			for i := 0; i < tt.n; i++ {
				if high[i] {
					got = append(got, i)
				}
			}
			assert.Equal(t, tt.wantHigh, got)
		})
	}
}

// --- Evaluate ---

func TestEvaluate_ResetsToLowWithoutNominations(t *testing.T) {
	ev := New(highFor(), nil, testConfig())
	out, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	for _, e := range out.Events {
		assert.Equal(t, types.ImpactLow, e.ImpactLevel, e.Title)
	}
	assert.Empty(t, out.Audit.Promoted)
}

func TestEvaluate_KeepsInputOrderAndDoesNotMutate(t *testing.T) {
	events := testEvents()
	ev := New(highFor("OpenAI releases o1"), nil, testConfig())
	out, err := ev.Evaluate(context.Background(), events, io.Discard)
	require.NoError(t, err)

	require.Len(t, out.Events, 3)
	for i := range events {
		assert.Equal(t, events[i].Title, out.Events[i].Title)
	}
	assert.Equal(t, types.ImpactMedium, events[0].ImpactLevel)
}

func TestEvaluate_SkipCorroborationPromotesNominees(t *testing.T) {
	cfg := testConfig()
	cfg.SkipCorroboration = true
	src := &fakeSource{name: "never", threshold: 1}

	ev := New(highFor("DeepSeek-R1 released"), []signal.Source{src}, cfg)
	out, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, map[string]types.ImpactLevel{
		"DeepSeek-R1 released":     types.ImpactHigh,
		"OpenAI releases o1":       types.ImpactLow,
		"OpenAI launches Operator": types.ImpactLow,
	}, impacts(out.Events))
	assert.Empty(t, src.queries)
	assert.True(t, out.Audit.SkipCorroboration)
	assert.Equal(t, 1, out.Promoted())
}

func TestEvaluate_AnySourcePromotes(t *testing.T) {
	hn := &fakeSource{name: "hackernews", threshold: 500, values: map[string]float64{"DeepSeek-R1": 2000, "o1": 100}}
	trends := &fakeSource{name: "trends", threshold: 0.25, values: map[string]float64{"Operator": 0.4, "o1": 0.1}}

	ev := New(highFor("DeepSeek-R1 released", "OpenAI releases o1", "OpenAI launches Operator"),
		[]signal.Source{hn, trends}, testConfig())
	out, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, map[string]types.ImpactLevel{
		"DeepSeek-R1 released":     types.ImpactHigh,
		"OpenAI releases o1":       types.ImpactLow,
		"OpenAI launches Operator": types.ImpactHigh,
	}, impacts(out.Events))

	require.Len(t, out.Audit.Candidates, 3)
	// Candidates are corroborated in chronological order.
	assert.Equal(t, "o1", out.Audit.Candidates[0].Keyword)
	assert.Equal(t, []signal.Reading{
		{Source: "hackernews", Value: 100, Threshold: 500},
		{Source: "trends", Value: 0.1, Threshold: 0.25},
	}, out.Audit.Candidates[0].Readings)
	assert.True(t, out.Audit.Candidates[1].Promoted)
	assert.Len(t, hn.queries, 3)
	assert.Equal(t, time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC), hn.queries[0].Date)
}

func TestEvaluate_SignalFailureIsZeroReading(t *testing.T) {
	down := &fakeSource{name: "hackernews", threshold: 500, err: errors.New("connection refused")}

	ev := New(highFor("DeepSeek-R1 released"), []signal.Source{down}, testConfig())
	out, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	require.Len(t, out.Audit.Candidates, 1)
	r := out.Audit.Candidates[0].Readings[0]
	assert.Zero(t, r.Value)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Error, "connection refused")
	assert.Empty(t, out.Audit.Promoted)
}

func TestEvaluate_RetriesMalformedBatchThenFallsBack(t *testing.T) {
	calls := 0
	client := clientFunc(func(context.Context, llm.Request) (string, error) {
		calls++
		return "not json", nil
	})

	cfg := testConfig()
	cfg.SkipCorroboration = true
	out, err := New(client, nil, cfg).Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 4, calls)
	require.Len(t, out.Audit.Batches, 1)
	b := out.Audit.Batches[0]
	assert.Equal(t, 4, b.Attempts)
	assert.True(t, b.Fallback)
	assert.NotEmpty(t, b.Error)
	assert.Empty(t, b.Nominated)
	for _, e := range out.Events {
		assert.Equal(t, types.ImpactLow, e.ImpactLevel)
	}
}

func TestEvaluate_RetryRecovers(t *testing.T) {
	calls := 0
	good := highFor("OpenAI releases o1")
	client := clientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("overloaded")
		}
		return good(ctx, req)
	})

	cfg := testConfig()
	cfg.SkipCorroboration = true
	out, err := New(client, nil, cfg).Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Audit.Batches[0].Attempts)
	assert.False(t, out.Audit.Batches[0].Fallback)
	assert.Equal(t, types.ImpactHigh, impacts(out.Events)["OpenAI releases o1"])
}

func TestEvaluate_ChronologicalBatches(t *testing.T) {
	var users []string
	inner := highFor()
	client := clientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		users = append(users, req.User)
		return inner(ctx, req)
	})

	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.SkipCorroboration = true
	out, err := New(client, nil, cfg).Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	require.Len(t, users, 2)
	assert.Contains(t, users[0], "0. 2024-12-05")
	assert.Contains(t, users[0], "1. 2025-01-20")
	assert.Contains(t, users[1], "0. 2025-01-23")
	assert.Len(t, out.Audit.Batches, 2)
	assert.Equal(t, 2, out.Audit.Batches[0].Size)
	assert.Equal(t, 1, out.Audit.Batches[1].Size)
}

func TestEvaluate_CandidateDelay(t *testing.T) {
	src := &fakeSource{name: "hn", threshold: 1}
	cfg := testConfig()
	cfg.CandidateDelay = 30 * time.Millisecond

	ev := New(highFor("DeepSeek-R1 released", "OpenAI releases o1", "OpenAI launches Operator"), []signal.Source{src}, cfg)
	start := time.Now()
	_, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestEvaluate_CandidateDelayFollowsSlowChecks(t *testing.T) {
	src := &fakeSource{name: "hn", threshold: 1, latency: 40 * time.Millisecond}
	cfg := testConfig()
	cfg.CandidateDelay = 40 * time.Millisecond

	ev := New(highFor("DeepSeek-R1 released", "OpenAI releases o1", "OpenAI launches Operator"), []signal.Source{src}, cfg)
	start := time.Now()
	res, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	// Three checks plus a delay after each of the first two.
	assert.GreaterOrEqual(t, time.Since(start), 195*time.Millisecond)
	assert.Len(t, res.Audit.Candidates, 3)
}

func TestEvaluate_AuditIdentifiesRun(t *testing.T) {
	ev := New(highFor(), nil, testConfig())
	a, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)
	b, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.NotEmpty(t, a.Audit.RunID)
	assert.NotEqual(t, a.Audit.RunID, b.Audit.RunID)
	assert.Equal(t, "test-model", a.Audit.Model)
	assert.Equal(t, 3, a.Audit.Events)
}

func TestEvaluate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(highFor(), nil, testConfig()).Evaluate(ctx, testEvents(), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Audit ---

func TestReconstruct_MatchesPromoted(t *testing.T) {
	hn := &fakeSource{name: "hackernews", threshold: 500, values: map[string]float64{"DeepSeek-R1": 2000}}
	ev := New(highFor("DeepSeek-R1 released", "OpenAI releases o1"), []signal.Source{hn}, testConfig())
	out, err := ev.Evaluate(context.Background(), testEvents(), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, out.Audit.Promoted, out.Audit.Reconstruct())
	assert.Equal(t, []string{dedup.IdentityKey(testEvents()[0])}, out.Audit.Promoted)
}

func TestReconstruct_IgnoresErroredReadings(t *testing.T) {
	a := Audit{Candidates: []CandidateRecord{
		{Key: "a", Readings: []signal.Reading{{Source: "hn", Value: 0, Threshold: 0, Error: "down"}}},
		{Key: "b", Readings: []signal.Reading{{Source: "hn", Value: 10, Threshold: 5}}},
	}}
	assert.Equal(t, []string{"b"}, a.Reconstruct())
}

func TestReconstruct_MonotonicInReadings(t *testing.T) {
	base := Audit{Candidates: []CandidateRecord{
		{Key: "a", Readings: []signal.Reading{{Source: "hn", Value: 100, Threshold: 500}}},
		{Key: "b", Readings: []signal.Reading{{Source: "hn", Value: 900, Threshold: 500}}},
	}}
	before := base.Reconstruct()

	// A higher reading on any source never removes a promotion.
	raised := Audit{Candidates: []CandidateRecord{
		{Key: "a", Readings: []signal.Reading{{Source: "hn", Value: 100, Threshold: 500}, {Source: "trends", Value: 0.5, Threshold: 0.25}}},
		{Key: "b", Readings: []signal.Reading{{Source: "hn", Value: 900, Threshold: 500}, {Source: "trends", Value: 0.1, Threshold: 0.25}}},
	}}
	after := raised.Reconstruct()

	assert.Subset(t, after, before)
	assert.Equal(t, []string{"a", "b"}, after)
}
