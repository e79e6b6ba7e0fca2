// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Item is one newsletter entry handed to the extractor.
type Item struct {
	// ID is the feed GUID, falling back to Link.
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Link      string    `json:"link" yaml:"link"`
	Published time.Time `json:"published" yaml:"published"`

	// Text is the item body converted to Markdown.
	Text string `json:"text" yaml:"text"`
}
