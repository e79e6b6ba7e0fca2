// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/milestone-engine/internal/pipeline"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

// flaggedCommand returns a command carrying the corroboration flags, parsed
// from args.
func flaggedCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addCorroborationFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func signalsEnabled() types.EvaluationConfig {
	var ecfg types.EvaluationConfig
	ecfg.Signals.HackerNews.Enabled = true
	ecfg.Signals.Trends.Enabled = true
	return ecfg
}

func TestCorroborationFlags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantSkip   bool
		wantTrends bool
		wantHN     bool
	}{
		{"defaults", nil, false, true, true},
		{"skip validation", []string{"--skip-validation"}, true, true, true},
		{"skip trends bypasses corroboration", []string{"--skip-trends"}, true, true, true},
		{"no trends source", []string{"--no-trends-source"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, noTrends := corroborationFlags(flaggedCommand(t, tt.args...))
			got := evaluationConfig(signalsEnabled(), buildOptions{skipCorroboration: skip, noTrendsSource: noTrends})

			assert.Equal(t, tt.wantSkip, got.SkipCorroboration)
			assert.Equal(t, tt.wantTrends, got.Signals.Trends.Enabled)
			assert.Equal(t, tt.wantHN, got.Signals.HackerNews.Enabled)
		})
	}
}

func TestEvaluationConfig_BatchSize(t *testing.T) {
	base := types.EvaluationConfig{BatchSize: 40}
	assert.Equal(t, 40, evaluationConfig(base, buildOptions{}).BatchSize)
	assert.Equal(t, 10, evaluationConfig(base, buildOptions{batchSize: 10}).BatchSize)
}

func TestUpdateBuildOptions(t *testing.T) {
	cmd := flaggedCommand(t, "--skip-trends")

	live := updateBuildOptions(cmd, pipeline.Options{Evaluate: true, Publish: true})
	assert.True(t, live.audit)
	assert.True(t, live.publish)
	assert.True(t, live.skipCorroboration)

	dry := updateBuildOptions(cmd, pipeline.Options{Evaluate: true, Publish: true, DryRun: true})
	assert.False(t, dry.audit)
	assert.False(t, dry.publish)
	assert.True(t, dry.evaluate)
}

func TestEvaluateBuildOptions(t *testing.T) {
	cmd := flaggedCommand(t)
	assert.True(t, evaluateBuildOptions(cmd, false, 0).audit)
	assert.False(t, evaluateBuildOptions(cmd, true, 0).audit)
	assert.Equal(t, 5, evaluateBuildOptions(cmd, true, 5).batchSize)
}

func TestBuild_DryRunLeavesNoAuditDatabase(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	dbPath := filepath.Join(t.TempDir(), "audit.db")
	cfg = types.Config{}
	cfg.Evaluation.APIKey = "test-key"
	cfg.Evaluation.Model = "test-model"
	cfg.Audit.DBPath = dbPath

	c, err := build(evaluateBuildOptions(flaggedCommand(t), true, 0))
	require.NoError(t, err)
	defer c.close()

	assert.Nil(t, c.audits)
	assert.NoFileExists(t, dbPath)
	assert.NotNil(t, c.pipeline.Evaluator)
}

func TestBuild_MissingAPIKey(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = types.Config{}

	_, err := build(evaluateBuildOptions(flaggedCommand(t), true, 0))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
