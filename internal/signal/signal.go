// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package signal measures external attention around a candidate event.
// Each Source turns a keyword and a date window into one number that is
// compared against the source's threshold.
package signal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

const defaultWindowDays = 7

// Query is the keyword and the date window a source measures.
type Query struct {
	Keyword string
	Date    time.Time

	// WindowDays is the number of days either side of Date.
	WindowDays int
}

// Window returns the inclusive start and exclusive end of the query window.
func (q Query) Window() (time.Time, time.Time) {
	days := q.WindowDays
	if days <= 0 {
		days = defaultWindowDays
	}
	return q.Date.AddDate(0, 0, -days), q.Date.AddDate(0, 0, days+1)
}

// Source is one external attention signal.
type Source interface {
	// Name identifies the source in audit records.
	Name() string

	// Threshold is the value at or above which a reading corroborates.
	Threshold() float64

	// Measure returns the source's value for q.
	Measure(ctx context.Context, q Query) (float64, error)
}

// Reading is the recorded outcome of one measurement.
type Reading struct {
	Source    string  `json:"source" yaml:"source"`
	Value     float64 `json:"value" yaml:"value"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Passed    bool    `json:"passed" yaml:"passed"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Check measures q with src. A failed measurement becomes a zero reading
// that carries the error text, so it never corroborates.
func Check(ctx context.Context, src Source, q Query) Reading {
	r := Reading{Source: src.Name(), Threshold: src.Threshold()}

	value, err := src.Measure(ctx, q)
	if err != nil {
		err = eris.Wrapf(types.ErrExternalSignal, "%s %q: %v", src.Name(), q.Keyword, err)
		zap.L().Warn("signal unavailable",
			zap.String("source", src.Name()),
			zap.String("keyword", q.Keyword),
			zap.Error(err),
		)
		r.Error = err.Error()
		return r
	}

	r.Value = value
	r.Passed = value >= r.Threshold
	return r
}

// FromConfig builds the enabled sources.
func FromConfig(cfg types.SignalConfig) []Source {
	var sources []Source
	if cfg.HackerNews.Enabled {
		sources = append(sources, NewHackerNews(cfg.HTTPConfig, cfg.HackerNews))
	}
	if cfg.Trends.Enabled {
		sources = append(sources, NewTrends(cfg.HTTPConfig, cfg.Trends))
	}
	return sources
}
