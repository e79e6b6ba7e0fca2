// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milestone-engine/internal/dedup"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <title-a> <title-b>",
	Short: "Show how the duplicate detector compares two titles",
	Long: `Dedup prints the key terms of two titles, their overlap, and whether the
events would be merged. Pass --org-a and --org-b to include attribution.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgA, _ := cmd.Flags().GetString("org-a")
		orgB, _ := cmd.Flags().GetString("org-b")

		a := types.Event{Title: args[0], Organization: orgA}
		b := types.Event{Title: args[1], Organization: orgB}

		fmt.Printf("A terms:   %s\n", terms(dedup.KeyTerms(a.Title)))
		fmt.Printf("B terms:   %s\n", terms(dedup.KeyTerms(b.Title)))
		fmt.Printf("Overlap:   %.2f\n", dedup.TitleOverlap(a.Title, b.Title))
		fmt.Printf("Duplicate: %v\n", dedup.IsLikelyDuplicate(a, b))
		return nil
	},
}

func terms(set map[string]struct{}) string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

func init() {
	dedupCmd.Flags().String("org-a", "", "organization of the first event")
	dedupCmd.Flags().String("org-b", "", "organization of the second event")

	rootCmd.AddCommand(dedupCmd)
}
