// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milestone-engine/internal/timeline"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the milestone dataset",
	Long: `Store works on the latest ai-milestones_*.json file in the data directory.
Use subcommands to summarize it, validate it, check its filename, or create an
empty dataset.`,
}

// --- info subcommand ---

var storeInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize the dataset by month and impact level",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := timeline.Locate(cfg.Store.DataDir)
		if err != nil {
			return err
		}
		t, err := timeline.Load(path)
		if err != nil {
			return err
		}
		s := timeline.Stats(t)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		fmt.Printf("File:     %s\n", path)
		fmt.Printf("As of:    %s\n", s.AsOf)
		fmt.Printf("Range:    %s to %s\n", s.RangeStart, s.RangeEndInclusive)
		fmt.Printf("Events:   %d (+%d context)\n", s.Events, s.ContextEvents)
		for level, n := range s.ByImpact {
			fmt.Printf("  %-8s %d\n", level, n)
		}
		fmt.Println()
		fmt.Printf("%-8s  %s\n", "Month", "Events")
		fmt.Println(strings.Repeat("-", 16))
		for _, m := range s.Months {
			fmt.Printf("%-8s  %d\n", m.Month, m.Events)
		}
		return nil
	},
}

// --- validate subcommand ---

var storeValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check the dataset against the schema and its invariants",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := storePath(args)
		if err != nil {
			return err
		}
		t, err := timeline.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: valid, %d events\n", path, len(timeline.AllEvents(t)))
		return nil
	},
}

// --- filename subcommand ---

var storeFilenameCmd = &cobra.Command{
	Use:   "filename [file]",
	Short: "Print the filename the dataset should have",
	Long: `Filename derives the dataset filename from its range and fails when the
file on disk is named differently.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := storePath(args)
		if err != nil {
			return err
		}
		t, err := timeline.Load(path)
		if err != nil {
			return err
		}
		want := timeline.DeriveFileName(t)
		fmt.Println(want)
		if filepath.Base(path) != want {
			return fmt.Errorf("%s should be named %s", path, want)
		}
		return nil
	},
}

// --- init subcommand ---

var storeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty dataset in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		rangeStart, _ := cmd.Flags().GetString("range-start")

		if path, err := timeline.Locate(cfg.Store.DataDir); err == nil {
			return fmt.Errorf("dataset already exists: %s", path)
		}
		t, err := timeline.New(rangeStart, time.Now())
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.Store.DataDir, timeline.DeriveFileName(t))
		if err := timeline.Write(path, t); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", path)
		return nil
	},
}

func storePath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return timeline.Locate(cfg.Store.DataDir)
}

func init() {
	storeInfoCmd.Flags().Bool("json", false, "output the summary as JSON")
	storeInitCmd.Flags().String("range-start", time.Now().Format("2006-01"), "first month of the dataset (YYYY-MM)")

	storeCmd.AddCommand(storeInfoCmd, storeValidateCmd, storeFilenameCmd, storeInitCmd)
	rootCmd.AddCommand(storeCmd)
}
