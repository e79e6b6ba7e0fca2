// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/milestone-engine/internal/audit"
	"github.com/pdiddy/milestone-engine/internal/config"
	"github.com/pdiddy/milestone-engine/internal/evaluate"
	"github.com/pdiddy/milestone-engine/internal/extract"
	"github.com/pdiddy/milestone-engine/internal/feed"
	"github.com/pdiddy/milestone-engine/internal/llm"
	"github.com/pdiddy/milestone-engine/internal/metrics"
	"github.com/pdiddy/milestone-engine/internal/pipeline"
	"github.com/pdiddy/milestone-engine/internal/publish"
	sig "github.com/pdiddy/milestone-engine/internal/signal"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// commandContext derives the command's context, cancelled on SIGINT or
// SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

// components holds what a command built from cfg so it can be closed and
// its usage reported.
type components struct {
	pipeline *pipeline.Pipeline
	llm      []*llm.AnthropicClient
	audits   *audit.Store
	metrics  *metrics.Run
}

func (c *components) close() {
	if c.audits != nil {
		if err := c.audits.Close(); err != nil {
			zap.L().Warn("closing audit store", zap.Error(err))
		}
	}
}

// finish records token usage and pushes metrics. Push failures are logged.
func (c *components) finish(ctx context.Context, runErr error) {
	for _, client := range c.llm {
		u := client.Usage()
		c.metrics.AddTokens(u.InputTokens, u.OutputTokens)
	}
	c.metrics.Finish(runErr)
	if err := c.metrics.Push(ctx, cfg.Metrics); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}

type buildOptions struct {
	command           string
	extract           bool
	evaluate          bool
	skipCorroboration bool
	noTrendsSource    bool
	batchSize         int
	publish           bool
	audit             bool
}

// addCorroborationFlags registers the flags that control Stage 2 of an
// evaluation.
func addCorroborationFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("skip-validation", false, "promote every nominee without external corroboration")
	cmd.Flags().Bool("skip-trends", false, "same as --skip-validation")
	cmd.Flags().Bool("no-trends-source", false, "corroborate without querying the search-interest signal")
}

// corroborationFlags reads the flags added by addCorroborationFlags. Both
// --skip-validation and --skip-trends bypass corroboration.
func corroborationFlags(cmd *cobra.Command) (skipCorroboration, noTrendsSource bool) {
	skipValidation, _ := cmd.Flags().GetBool("skip-validation")
	skipTrends, _ := cmd.Flags().GetBool("skip-trends")
	noTrendsSource, _ = cmd.Flags().GetBool("no-trends-source")
	return skipValidation || skipTrends, noTrendsSource
}

// evaluationConfig applies command overrides to the configured evaluation
// settings.
func evaluationConfig(base types.EvaluationConfig, opts buildOptions) types.EvaluationConfig {
	if opts.skipCorroboration {
		base.SkipCorroboration = true
	}
	if opts.noTrendsSource {
		base.Signals.Trends.Enabled = false
	}
	if opts.batchSize > 0 {
		base.BatchSize = opts.batchSize
	}
	return base
}

// build wires the pipeline for a command. API keys are checked before any
// collaborator that talks to the network is created.
func build(opts buildOptions) (*components, error) {
	if opts.extract {
		if err := config.RequireAPIKey("extraction", cfg.Extraction.AIConfig); err != nil {
			return nil, err
		}
	}
	if opts.evaluate {
		if err := config.RequireAPIKey("evaluation", cfg.Evaluation.AIConfig); err != nil {
			return nil, err
		}
	}

	c := &components{metrics: metrics.NewRun(opts.command)}

	var x pipeline.Extractor
	if opts.extract {
		client := llm.NewAnthropic(cfg.Extraction.APIKey, cfg.Extraction.Model)
		c.llm = append(c.llm, client)
		x = extract.New(client, cfg.Extraction)
	}

	p := pipeline.New(cfg.Store, feed.NewReader(cfg.Feed), x, os.Stdout)
	p.Metrics = c.metrics

	if opts.evaluate {
		ecfg := evaluationConfig(cfg.Evaluation, opts)
		eclient := llm.NewAnthropic(ecfg.APIKey, ecfg.Model)
		c.llm = append(c.llm, eclient)
		p.Evaluator = evaluate.New(eclient, sig.FromConfig(ecfg.Signals), ecfg)
	}

	if opts.audit && cfg.Audit.DBPath != "" {
		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return nil, err
		}
		c.audits = store
		p.Audits = store
	}

	if opts.publish {
		wd, err := os.Getwd()
		if err != nil {
			c.close()
			return nil, err
		}
		gh := publish.NewGitHub(cfg.Publish, wd)
		if err := gh.Available(); err != nil {
			c.close()
			return nil, err
		}
		p.Publisher = gh
	}

	c.pipeline = p
	return c, nil
}
