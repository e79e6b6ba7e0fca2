// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Insert the candidates of an edited review document",
	Long: `Approve reads a review document produced by "update --review" (for example
the body of the review issue after editing), validates the events in its JSON
block, drops those already in the dataset, and inserts the rest. Use
--file - to read from standard input.`,
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if file == "" {
		return fmt.Errorf("--file is required")
	}

	var (
		doc []byte
		err error
	)
	if file == "-" {
		doc, err = io.ReadAll(os.Stdin)
	} else {
		doc, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("reading review document: %w", err)
	}

	c, err := build(buildOptions{command: "approve"})
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := c.pipeline.Approve(ctx, string(doc), dryRun)
	c.finish(ctx, err)
	if err != nil {
		return err
	}

	fmt.Printf("\nApproved: %d, invalid: %d, already known: %d, before range: %d, inserted: %d\n",
		res.Parsed, res.Invalid, res.Duplicates, res.OutOfRange, res.Inserted)
	if res.NewPath != "" {
		fmt.Printf("Dataset: %s (renamed: %v)\n", res.NewPath, res.Renamed)
	}
	return nil
}

func init() {
	approveCmd.Flags().String("file", "", "review document to approve (- for stdin)")
	approveCmd.Flags().Bool("dry-run", false, "validate and report without writing")

	rootCmd.AddCommand(approveCmd)
}
