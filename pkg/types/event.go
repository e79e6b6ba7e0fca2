// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the milestone-engine pipeline:
// the Event record, the Timeline aggregate persisted as the canonical dataset,
// stage configuration, and the error taxonomy shared across stages.
package types

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DatePrecision tags how much of an event date is known.
type DatePrecision string

const (
	PrecisionDay   DatePrecision = "day"
	PrecisionMonth DatePrecision = "month"
	PrecisionYear  DatePrecision = "year"
)

// ImpactLevel is the ordered significance of an event. The evaluator only
// writes ImpactHigh and ImpactLow; the wider scale is accepted on load.
type ImpactLevel string

const (
	ImpactWatershed ImpactLevel = "watershed"
	ImpactHigh      ImpactLevel = "high"
	ImpactMedium    ImpactLevel = "medium"
	ImpactLow       ImpactLevel = "low"
)

// Rank orders impact levels: watershed > high > medium > low. Unknown levels rank 0.
func (l ImpactLevel) Rank() int {
	switch l {
	case ImpactWatershed:
		return 4
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// ReleaseType classifies what kind of release an event describes.
type ReleaseType string

const (
	ReleaseModel       ReleaseType = "model"
	ReleaseOpenWeights ReleaseType = "open-weights"
	ReleaseAPI         ReleaseType = "api"
	ReleaseProduct     ReleaseType = "product"
	ReleaseResearch    ReleaseType = "research"
	ReleaseFeature     ReleaseType = "feature"
	ReleaseBenchmark   ReleaseType = "benchmark"
)

// ReleaseTypes lists the accepted release types.
var ReleaseTypes = []ReleaseType{
	ReleaseModel, ReleaseOpenWeights, ReleaseAPI, ReleaseProduct,
	ReleaseResearch, ReleaseFeature, ReleaseBenchmark,
}

var validReleaseTypes = func() map[ReleaseType]bool {
	m := make(map[ReleaseType]bool, len(ReleaseTypes))
	for _, rt := range ReleaseTypes {
		m[rt] = true
	}
	return m
}()

// Modalities is the fixed vocabulary accepted in Event.Modalities.
var Modalities = []string{
	"text", "image", "audio", "video", "code", "multimodal", "embedding", "robotics", "agents",
}

var validModalities = func() map[string]bool {
	m := make(map[string]bool, len(Modalities))
	for _, v := range Modalities {
		m[v] = true
	}
	return m
}()

// Source is a labelled link backing an event.
type Source struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
}

// Event is a single AI milestone in the timeline.
type Event struct {
	// Date is an ISO partial date: YYYY-MM-DD, YYYY-MM, or YYYY.
	Date string `json:"date" yaml:"date"`

	// DatePrecision must agree with the shape of Date.
	DatePrecision DatePrecision `json:"datePrecision" yaml:"datePrecision"`

	Title        string `json:"title" yaml:"title"`
	Organization string `json:"organization" yaml:"organization"`

	// ModelFamily names the model line (e.g. "Claude", "Llama"). Optional;
	// identity falls back to Title when empty.
	ModelFamily string `json:"modelFamily,omitempty" yaml:"modelFamily,omitempty"`

	Modalities  []string    `json:"modalities" yaml:"modalities"`
	ReleaseType ReleaseType `json:"releaseType" yaml:"releaseType"`
	Description string      `json:"description" yaml:"description"`

	// Rationale explains why the event mattered.
	Rationale string `json:"rationale" yaml:"rationale"`

	ImpactLevel ImpactLevel `json:"impactLevel" yaml:"impactLevel"`
	Markers     []string    `json:"markers,omitempty" yaml:"markers,omitempty"`
	Sources     []Source    `json:"sources" yaml:"sources"`
}

// datePattern accepts YYYY, YYYY-MM, and YYYY-MM-DD.
var datePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

// ParseDate returns the first instant covered by a partial date and its precision.
func ParseDate(date string) (time.Time, DatePrecision, error) {
	if !datePattern.MatchString(date) {
		return time.Time{}, "", eris.Errorf("date %q is not YYYY, YYYY-MM, or YYYY-MM-DD", date)
	}
	var (
		layout    string
		precision DatePrecision
	)
	switch len(date) {
	case 4:
		layout, precision = "2006", PrecisionYear
	case 7:
		layout, precision = "2006-01", PrecisionMonth
	default:
		layout, precision = "2006-01-02", PrecisionDay
	}
	t, err := time.Parse(layout, date)
	if err != nil {
		return time.Time{}, "", eris.Wrapf(err, "date %q", date)
	}
	return t, precision, nil
}

// MonthKey returns the YYYY-MM bucket for a partial date. Year-precision
// dates bucket into January.
func MonthKey(date string) string {
	switch {
	case len(date) >= 7:
		return date[:7]
	case len(date) == 4:
		return date + "-01"
	default:
		return date
	}
}

// Validate checks the event against the full schema and reports every
// violation at once, wrapped in ErrValidation.
func (e Event) Validate() error {
	var problems []string

	if _, precision, err := ParseDate(e.Date); err != nil {
		problems = append(problems, err.Error())
	} else if e.DatePrecision != precision {
		problems = append(problems, fmt.Sprintf("datePrecision %q does not match date %q", e.DatePrecision, e.Date))
	}
	if strings.TrimSpace(e.Title) == "" {
		problems = append(problems, "title is empty")
	}
	if strings.TrimSpace(e.Organization) == "" {
		problems = append(problems, "organization is empty")
	}
	if len(e.Modalities) == 0 {
		problems = append(problems, "modalities is empty")
	}
	for _, m := range e.Modalities {
		if !validModalities[m] {
			problems = append(problems, fmt.Sprintf("unknown modality %q", m))
		}
	}
	if !validReleaseTypes[e.ReleaseType] {
		problems = append(problems, fmt.Sprintf("invalid releaseType %q", e.ReleaseType))
	}
	if strings.TrimSpace(e.Description) == "" {
		problems = append(problems, "description is empty")
	}
	if e.ImpactLevel.Rank() == 0 {
		problems = append(problems, fmt.Sprintf("invalid impactLevel %q", e.ImpactLevel))
	}
	if len(e.Sources) == 0 {
		problems = append(problems, "at least one source is required")
	}
	for i, s := range e.Sources {
		if strings.TrimSpace(s.Label) == "" {
			problems = append(problems, fmt.Sprintf("source %d: empty label", i))
		}
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("source %d: invalid url %q", i, s.URL))
		}
	}

	if len(problems) > 0 {
		return eris.Wrapf(ErrValidation, "event %q: %s", e.Title, strings.Join(problems, "; "))
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	c := e
	c.Modalities = append([]string(nil), e.Modalities...)
	c.Markers = append([]string(nil), e.Markers...)
	c.Sources = append([]Source(nil), e.Sources...)
	return c
}
