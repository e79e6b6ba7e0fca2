// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milestone-engine/internal/audit"
	"github.com/pdiddy/milestone-engine/internal/evaluate"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Re-score the significance of every event in the dataset",
	Long: `Evaluate asks the model to nominate significant events in chronological
batches, corroborates each nominee against community and search-interest
signals, and marks the promoted events high and all others low. Every run
except a dry run is recorded in the audit database; use "evaluate runs" and "evaluate show" to
inspect past runs.`,
	RunE: runEvaluate,
}

// evaluateBuildOptions maps evaluate's flags to the components it needs.
// Runs are recorded in the audit database unless dryRun is set.
func evaluateBuildOptions(cmd *cobra.Command, dryRun bool, batchSize int) buildOptions {
	skipCorroboration, noTrendsSource := corroborationFlags(cmd)
	return buildOptions{
		command:           "evaluate",
		evaluate:          true,
		skipCorroboration: skipCorroboration,
		noTrendsSource:    noTrendsSource,
		batchSize:         batchSize,
		audit:             !dryRun,
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	export, _ := cmd.Flags().GetBool("audit-export")

	c, err := build(evaluateBuildOptions(cmd, dryRun, batchSize))
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := c.pipeline.EvaluateStore(ctx, dryRun)
	c.finish(ctx, err)
	if err != nil {
		return err
	}

	printResult(res)
	if export {
		path, err := audit.ExportYAML(cfg.Audit.ExportDir, res.Audit)
		if err != nil {
			return err
		}
		fmt.Printf("Audit exported to %s\n", path)
	}
	return nil
}

var evaluateRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded evaluation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No evaluation runs recorded.")
			return nil
		}

		fmt.Printf("%-36s  %-20s  %-8s  %-10s  %s\n", "Run", "Started", "Events", "Candidates", "Promoted")
		fmt.Println(strings.Repeat("-", 92))
		for _, r := range runs {
			fmt.Printf("%-36s  %-20s  %-8d  %-10d  %d\n",
				r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Events, r.Candidates, r.Promoted)
		}
		return nil
	},
}

var evaluateShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show an evaluation run (latest when no ID is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		export, _ := cmd.Flags().GetBool("audit-export")

		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		var a evaluate.Audit
		if len(args) == 1 {
			a, err = store.Load(ctx, args[0])
		} else {
			a, err = store.Latest(ctx)
		}
		if err != nil {
			return err
		}

		printAudit(a)
		if export {
			path, err := audit.ExportYAML(cfg.Audit.ExportDir, a)
			if err != nil {
				return err
			}
			fmt.Printf("\nAudit exported to %s\n", path)
		}
		return nil
	},
}

func printAudit(a evaluate.Audit) {
	w := os.Stdout
	fmt.Fprintf(w, "Run %s started %s\n", a.RunID, a.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Model %s, batch size %d, %d events\n", a.Model, a.BatchSize, a.Events)
	for _, b := range a.Batches {
		status := "ok"
		if b.Fallback {
			status = "fallback: " + b.Error
		}
		fmt.Fprintf(w, "  batch %d: %d events, %d attempts, %d nominated (%s)\n",
			b.Index, b.Size, b.Attempts, len(b.Nominated), status)
	}
	for _, c := range a.Candidates {
		mark := " "
		if c.Promoted {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s %s [%s]\n", mark, c.Date, c.Title, c.Keyword)
		for _, r := range c.Readings {
			if r.Error != "" {
				fmt.Fprintf(w, "      %-10s error: %s\n", r.Source, r.Error)
				continue
			}
			fmt.Fprintf(w, "      %-10s %.2f / %.2f\n", r.Source, r.Value, r.Threshold)
		}
	}

	if !sameKeys(a.Reconstruct(), a.Promoted) {
		fmt.Fprintln(w, "\nwarning: recorded promotions differ from those implied by the readings")
	}
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	for _, k := range b {
		if !set[k] {
			return false
		}
	}
	return true
}

func init() {
	evaluateCmd.Flags().Bool("dry-run", false, "evaluate and report without writing the dataset or audit")
	addCorroborationFlags(evaluateCmd)
	evaluateCmd.Flags().Int("batch-size", 0, "events per nomination batch (default from config)")
	evaluateCmd.Flags().Bool("audit-export", false, "write the run's audit as YAML to audit.export_dir")

	evaluateRunsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	evaluateShowCmd.Flags().Bool("audit-export", false, "write the audit as YAML to audit.export_dir")

	evaluateCmd.AddCommand(evaluateRunsCmd, evaluateShowCmd)
	rootCmd.AddCommand(evaluateCmd)
}
