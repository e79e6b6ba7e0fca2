// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed reads newsletter items from an RSS or Atom feed, or from a
// local file, and converts their bodies to Markdown.
package feed

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/httputil"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// Options select which items a read returns.
type Options struct {
	// After drops feed items published on or before this instant unless
	// Full is set. Zero keeps everything.
	After time.Time
	Full  bool

	// Limit caps the number of items returned (0 = no cap). The oldest
	// items are kept so the cursor advances in order.
	Limit int
}

// Reader fetches and normalizes newsletter items.
type Reader struct {
	client    *http.Client
	cfg       types.FeedConfig
	converter *converter
}

// NewReader creates a Reader for cfg.
func NewReader(cfg types.FeedConfig) *Reader {
	return &Reader{
		client:    httputil.NewClient(cfg.HTTPConfig),
		cfg:       cfg,
		converter: newConverter(),
	}
}

// Fetch downloads the configured feed and returns its items.
func (r *Reader) Fetch(ctx context.Context, opts Options) ([]types.Item, error) {
	if r.cfg.URL == "" {
		return nil, eris.Wrap(types.ErrConfiguration, "feed.url is not set")
	}
	body, err := httputil.Get(ctx, r.client, r.cfg.URL, r.cfg.UserAgent)
	if err != nil {
		return nil, eris.Wrap(err, "fetching feed")
	}
	items, err := r.parseFeed(body)
	if err != nil {
		return nil, err
	}
	return Select(items, opts), nil
}

// ReadFile reads items from a local file. A file holding an RSS or Atom
// document yields its items filtered by opts. Any other file is one item
// (HTML is converted, text and Markdown are used as is) and only Limit
// applies, since the caller chose it explicitly.
func (r *Reader) ReadFile(path string, opts Options) ([]types.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", path)
	}

	items, err := r.parseFeed(data)
	if err == nil {
		return Select(items, opts), nil
	}
	if !errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return nil, err
	}

	item, err := r.document(path, string(data))
	if err != nil {
		return nil, err
	}
	return Select([]types.Item{item}, Options{Full: true, Limit: opts.Limit}), nil
}

func (r *Reader) parseFeed(data []byte) ([]types.Item, error) {
	f, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, err
		}
		return nil, eris.Wrap(err, "parsing feed")
	}

	items := make([]types.Item, 0, len(f.Items))
	for _, fi := range f.Items {
		body := fi.Content
		if strings.TrimSpace(body) == "" {
			body = fi.Description
		}
		text, err := r.converter.toMarkdown(body)
		if err != nil {
			zap.L().Warn("feed item conversion failed", zap.String("link", fi.Link), zap.Error(err))
			continue
		}

		it := types.Item{
			ID:    fi.GUID,
			Title: strings.TrimSpace(fi.Title),
			Link:  fi.Link,
			Text:  text,
		}
		if it.ID == "" {
			it.ID = fi.Link
		}
		switch {
		case fi.PublishedParsed != nil:
			it.Published = fi.PublishedParsed.UTC()
		case fi.UpdatedParsed != nil:
			it.Published = fi.UpdatedParsed.UTC()
		}
		items = append(items, it)
	}
	return items, nil
}

// document turns a non-feed file into a single item.
func (r *Reader) document(path, content string) (types.Item, error) {
	base := filepath.Base(path)
	it := types.Item{
		ID:    base,
		Title: strings.TrimSuffix(base, filepath.Ext(base)),
		Text:  strings.TrimSpace(content),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		if title := htmlTitle(content); title != "" {
			it.Title = title
		}
		text, err := r.converter.toMarkdown(content)
		if err != nil {
			return it, eris.Wrapf(err, "converting %s", path)
		}
		it.Text = text
	}

	if info, err := os.Stat(path); err == nil {
		it.Published = info.ModTime().UTC()
	}
	return it, nil
}

// Select applies the cursor and limit to items and returns them oldest
// first. Items without a date are kept and sort last.
func Select(items []types.Item, opts Options) []types.Item {
	var out []types.Item
	for _, it := range items {
		if !opts.Full && !opts.After.IsZero() && !it.Published.IsZero() && !it.Published.After(opts.After) {
			continue
		}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Published, out[j].Published
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
