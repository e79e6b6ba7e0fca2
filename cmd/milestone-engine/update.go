// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milestone-engine/internal/pipeline"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Ingest new newsletter items into the dataset",
	Long: `Update reads newsletter items published since the dataset's asOf date,
extracts milestone events, drops events already in the dataset, and inserts
the rest. With --review the candidates are posted as a GitHub issue instead;
edit the issue and run "approve" on it. With --evaluate the significance of
every event is re-scored after insertion. With --publish the updated dataset
is committed on a new branch and a pull request is opened.`,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	opts := pipeline.Options{}
	opts.DryRun, _ = flags.GetBool("dry-run")
	opts.Full, _ = flags.GetBool("full")
	opts.Limit, _ = flags.GetInt("limit")
	opts.File, _ = flags.GetString("file")
	opts.Review, _ = flags.GetBool("review")
	opts.Evaluate, _ = flags.GetBool("evaluate")
	opts.Publish, _ = flags.GetBool("publish")

	c, err := build(updateBuildOptions(cmd, opts))
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := c.pipeline.Run(ctx, opts)
	c.finish(ctx, err)
	if err != nil {
		return err
	}

	printResult(res)
	return nil
}

// updateBuildOptions maps update's flags to the components it needs. A dry
// run never opens the audit database or the publisher.
func updateBuildOptions(cmd *cobra.Command, opts pipeline.Options) buildOptions {
	skipCorroboration, noTrendsSource := corroborationFlags(cmd)
	return buildOptions{
		command:           "update",
		extract:           true,
		evaluate:          opts.Evaluate,
		skipCorroboration: skipCorroboration,
		noTrendsSource:    noTrendsSource,
		publish:           (opts.Review || opts.Publish) && !opts.DryRun,
		audit:             opts.Evaluate && !opts.DryRun,
	}
}

func printResult(res pipeline.Result) {
	w := os.Stdout
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Items processed:   %d\n", res.Items)
	fmt.Fprintf(w, "Events extracted:  %d (%d skipped, %d unparseable responses, %d failed calls)\n",
		res.Extracted, res.Skipped, res.ParseFailures, res.Failed)
	fmt.Fprintf(w, "Merged:            %d\n", res.Merged)
	fmt.Fprintf(w, "Already known:     %d\n", res.Duplicates)
	fmt.Fprintf(w, "Before range:      %d\n", res.OutOfRange)
	fmt.Fprintf(w, "Inserted:          %d\n", res.Inserted)
	if res.RunID != "" {
		fmt.Fprintf(w, "Evaluation:        %s (%d promoted, %d changed)\n", res.RunID, res.Promoted, res.ImpactChanges)
	}
	if res.NewPath != "" {
		fmt.Fprintf(w, "Dataset:           %s (renamed: %v)\n", res.NewPath, res.Renamed)
	}
	if res.IssueURL != "" {
		fmt.Fprintf(w, "Review issue:      %s\n", res.IssueURL)
	}
	if res.PullRequestURL != "" {
		fmt.Fprintf(w, "Pull request:      %s\n", res.PullRequestURL)
	}
	if res.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was written.")
	}
}

func init() {
	updateCmd.Flags().Bool("dry-run", false, "compute and print results without writing or publishing")
	updateCmd.Flags().Bool("full", false, "ignore the dataset cursor and process every feed item")
	updateCmd.Flags().Int("limit", 0, "maximum number of items to process (0 = all)")
	updateCmd.Flags().String("file", "", "read items from a local feed, HTML, or Markdown file instead of the feed URL")
	updateCmd.Flags().Bool("review", false, "post candidates as a review issue instead of inserting them")
	updateCmd.Flags().Bool("evaluate", false, "re-score significance of the whole dataset after insertion")
	addCorroborationFlags(updateCmd)
	updateCmd.Flags().Bool("publish", false, "commit the dataset on a new branch and open a pull request")

	rootCmd.AddCommand(updateCmd)
}
