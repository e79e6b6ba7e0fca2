// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the milestone-engine CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/config"
	"github.com/pdiddy/milestone-engine/internal/secrets"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is the resolved configuration, available to every subcommand.
var cfg types.Config

var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "milestone-engine",
	Short: "Curate a dataset of AI milestones from newsletters",
	Long: `milestone-engine reads AI newsletter items, extracts milestone events with
Claude, removes duplicates against the existing dataset, scores significance,
and writes the dataset consumed by the timeline site.

Run "update" on a schedule. Use --review to route candidates through a GitHub
issue and "approve" to insert the edited result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		if token := s[secrets.GitHubToken]; token != "" && os.Getenv("GH_TOKEN") == "" {
			_ = os.Setenv("GH_TOKEN", token)
		}

		cfg, err = config.Load(viper.GetViper(), s)
		if err != nil {
			return err
		}
		logger, err = config.InitLogger(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./milestone-engine.yaml or ~/.config/milestone-engine/milestone-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of secret files (anthropic-api-key, github-token)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the ai-milestones_*.json dataset")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("store.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	config.Setup(viper.GetViper(), cfgFile)

	used, err := config.Read(viper.GetViper())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
