// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/internal/httputil"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// trendsBaseURL is the Google Trends API root. Package-level var for test
// substitution.
var trendsBaseURL = "https://trends.google.com/trends/api"

const (
	defaultBaselineTopic = "ChatGPT"
	defaultMinRatio      = 0.25
	timeseriesWidget     = "TIMESERIES"
)

// xssiPrefix guards every Trends API response.
var xssiPrefix = []byte(")]}'")

// Trends measures public interest as the keyword's peak search interest
// divided by the peak interest of a stable baseline topic in the same
// query window.
type Trends struct {
	client    *http.Client
	userAgent string
	baseline  string
	geo       string
	minRatio  float64
}

// NewTrends creates the source. The client keeps cookies because the
// widget endpoint rejects requests without the explore session's cookie.
func NewTrends(httpCfg types.HTTPConfig, cfg types.TrendsConfig) *Trends {
	client := httputil.NewClient(httpCfg)
	jar, _ := cookiejar.New(nil)
	client.Jar = jar

	t := &Trends{
		client:    client,
		userAgent: httpCfg.UserAgent,
		baseline:  cfg.BaselineTopic,
		geo:       cfg.Geo,
		minRatio:  cfg.MinRatio,
	}
	if t.baseline == "" {
		t.baseline = defaultBaselineTopic
	}
	if t.minRatio <= 0 {
		t.minRatio = defaultMinRatio
	}
	return t
}

func (t *Trends) Name() string       { return "trends" }
func (t *Trends) Threshold() float64 { return t.minRatio }

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Value []float64 `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}

// Measure returns keyword peak / baseline peak over the window.
func (t *Trends) Measure(ctx context.Context, q Query) (float64, error) {
	start, end := q.Window()
	window := start.Format("2006-01-02") + " " + end.AddDate(0, 0, -1).Format("2006-01-02")

	explore, err := json.Marshal(exploreRequest{
		ComparisonItem: []comparisonItem{
			{Keyword: q.Keyword, Geo: t.geo, Time: window},
			{Keyword: t.baseline, Geo: t.geo, Time: window},
		},
	})
	if err != nil {
		return 0, eris.Wrap(err, "encoding explore request")
	}

	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "0")
	params.Set("req", string(explore))

	body, err := httputil.Get(ctx, t.client, trendsBaseURL+"/explore?"+params.Encode(), t.userAgent)
	if err != nil {
		return 0, err
	}
	var er exploreResponse
	if err := json.Unmarshal(stripXSSI(body), &er); err != nil {
		return 0, eris.Wrap(err, "decoding explore response")
	}

	for _, w := range er.Widgets {
		if w.ID != timeseriesWidget {
			continue
		}
		params := url.Values{}
		params.Set("hl", "en-US")
		params.Set("tz", "0")
		params.Set("req", string(w.Request))
		params.Set("token", w.Token)

		body, err := httputil.Get(ctx, t.client, trendsBaseURL+"/widgetdata/multiline?"+params.Encode(), t.userAgent)
		if err != nil {
			return 0, err
		}
		var mr multilineResponse
		if err := json.Unmarshal(stripXSSI(body), &mr); err != nil {
			return 0, eris.Wrap(err, "decoding multiline response")
		}
		return peakRatio(mr)
	}
	return 0, eris.New("explore response has no timeseries widget")
}

func peakRatio(mr multilineResponse) (float64, error) {
	var keywordPeak, baselinePeak float64
	for _, point := range mr.Default.TimelineData {
		if len(point.Value) < 2 {
			continue
		}
		keywordPeak = max(keywordPeak, point.Value[0])
		baselinePeak = max(baselinePeak, point.Value[1])
	}
	if baselinePeak == 0 {
		return 0, eris.New("baseline topic has no interest in window")
	}
	return keywordPeak / baselinePeak, nil
}

// stripXSSI removes the anti-XSSI prefix and the remainder of its line.
func stripXSSI(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if !bytes.HasPrefix(body, xssiPrefix) {
		return body
	}
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		return body[i+1:]
	}
	return bytes.TrimPrefix(bytes.TrimPrefix(body, xssiPrefix), []byte(","))
}
