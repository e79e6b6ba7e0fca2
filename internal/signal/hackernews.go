// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/internal/httputil"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// hackerNewsSearchURL is the Algolia HN search endpoint. Package-level var
// for test substitution.
var hackerNewsSearchURL = "https://hn.algolia.com/api/v1/search"

const defaultMinPoints = 500

// HackerNews measures community engagement as the points of the top story
// matching the keyword within the window.
type HackerNews struct {
	client    *http.Client
	userAgent string
	minPoints float64
}

// NewHackerNews creates the source. MinPoints defaults to 500.
func NewHackerNews(httpCfg types.HTTPConfig, cfg types.HackerNewsConfig) *HackerNews {
	minPoints := cfg.MinPoints
	if minPoints <= 0 {
		minPoints = defaultMinPoints
	}
	return &HackerNews{
		client:    httputil.NewClient(httpCfg),
		userAgent: httpCfg.UserAgent,
		minPoints: minPoints,
	}
}

func (h *HackerNews) Name() string       { return "hackernews" }
func (h *HackerNews) Threshold() float64 { return h.minPoints }

type hnSearchResponse struct {
	Hits []struct {
		Title  string `json:"title"`
		Points int    `json:"points"`
	} `json:"hits"`
}

// Measure returns the highest story score in the window.
func (h *HackerNews) Measure(ctx context.Context, q Query) (float64, error) {
	start, end := q.Window()

	params := url.Values{}
	params.Set("query", q.Keyword)
	params.Set("tags", "story")
	params.Set("numericFilters", fmt.Sprintf("created_at_i>=%d,created_at_i<%d", start.Unix(), end.Unix()))
	params.Set("hitsPerPage", "20")

	body, err := httputil.Get(ctx, h.client, hackerNewsSearchURL+"?"+params.Encode(), h.userAgent)
	if err != nil {
		return 0, err
	}

	var resp hnSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, eris.Wrap(err, "decoding hackernews response")
	}

	top := 0
	for _, hit := range resp.Hits {
		if hit.Points > top {
			top = hit.Points
		}
	}
	return float64(top), nil
}
