// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/milestone-engine/internal/config"
	"github.com/pdiddy/milestone-engine/internal/extract"
	"github.com/pdiddy/milestone-engine/internal/feed"
	"github.com/pdiddy/milestone-engine/internal/llm"
	"github.com/pdiddy/milestone-engine/internal/timeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract candidate events from a file and print them",
	Long: `Extract runs the event extractor over a local feed, HTML, or Markdown file
and prints the candidate events. Nothing is deduplicated or written.`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	if file == "" {
		return fmt.Errorf("--file is required")
	}
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
	if err := config.RequireAPIKey("extraction", cfg.Extraction.AIConfig); err != nil {
		return err
	}

	items, err := feed.NewReader(cfg.Feed).ReadFile(file, feed.Options{Full: true, Limit: limit})
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	x := extract.New(llm.NewAnthropic(cfg.Extraction.APIKey, cfg.Extraction.Model), cfg.Extraction)
	if path, err := timeline.Locate(cfg.Store.DataDir); err == nil {
		if t, err := timeline.Load(path); err == nil {
			x.SetKnownNames(timeline.KnownNames(t))
		}
	}
	res, err := x.Extract(ctx, items, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d events from %d items (%d skipped)\n", len(res.Events), len(items), res.Skipped)

	if format == "yaml" {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(res.Events)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Events)
}

func init() {
	extractCmd.Flags().String("file", "", "feed, HTML, or Markdown file to extract from")
	extractCmd.Flags().Int("limit", 0, "maximum number of items (0 = all)")
	extractCmd.Flags().String("format", "json", "output format: json or yaml")

	rootCmd.AddCommand(extractCmd)
}
