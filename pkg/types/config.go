package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "milestone-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIConfig holds shared settings for stages that call the LLM.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Temperature is kept at 0 for reproducible output.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps the response length of each completion.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// CallTimeout bounds every completion call.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`
}

// FeedConfig holds settings for fetching newsletter items.
type FeedConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the RSS or Atom feed of the newsletter.
	URL string `json:"url" yaml:"url" mapstructure:"url"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// ShortItemChars is the length under which items are grouped into one
	// multi-item prompt (default 1500).
	ShortItemChars int `json:"short_item_chars" yaml:"short_item_chars" mapstructure:"short_item_chars"`

	// MaxBatchItems caps how many short items share a prompt (default 5).
	MaxBatchItems int `json:"max_batch_items" yaml:"max_batch_items" mapstructure:"max_batch_items"`
}

// HackerNewsConfig configures the community-engagement signal.
type HackerNewsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// MinPoints is the top-story score that corroborates a nominee.
	MinPoints float64 `json:"min_points" yaml:"min_points" mapstructure:"min_points"`
}

// TrendsConfig configures the public-interest signal.
type TrendsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// BaselineTopic is the stable reference keyword compared in the same query.
	BaselineTopic string `json:"baseline_topic" yaml:"baseline_topic" mapstructure:"baseline_topic"`

	// MinRatio is the keyword-to-baseline peak ratio that corroborates a nominee.
	MinRatio float64 `json:"min_ratio" yaml:"min_ratio" mapstructure:"min_ratio"`

	// Geo restricts the query to a region ("" = worldwide).
	Geo string `json:"geo" yaml:"geo" mapstructure:"geo"`
}

// SignalConfig holds settings shared by the corroboration sources.
type SignalConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// WindowDays is the number of days either side of the event date queried.
	WindowDays int `json:"window_days" yaml:"window_days" mapstructure:"window_days"`

	HackerNews HackerNewsConfig `json:"hackernews" yaml:"hackernews" mapstructure:"hackernews"`
	Trends     TrendsConfig     `json:"trends" yaml:"trends" mapstructure:"trends"`
}

// EvaluationConfig holds settings for the significance evaluator.
type EvaluationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// BatchSize is the number of events per nomination batch (default 40).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// NominationRetries is the number of retries of a malformed batch (default 3).
	NominationRetries int `json:"nomination_retries" yaml:"nomination_retries" mapstructure:"nomination_retries"`

	// SkipCorroboration promotes every nominee without consulting signals.
	SkipCorroboration bool `json:"skip_corroboration" yaml:"skip_corroboration" mapstructure:"skip_corroboration"`

	// CandidateDelay is the pause after each corroboration check before the next starts (default 2s).
	CandidateDelay time.Duration `json:"candidate_delay" yaml:"candidate_delay" mapstructure:"candidate_delay"`

	Signals SignalConfig `json:"signals" yaml:"signals" mapstructure:"signals"`
}

// StoreConfig locates the canonical dataset.
type StoreConfig struct {
	// DataDir holds the ai-milestones_*.json files.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// ReferenceFiles name files that import the dataset by filename; they
	// are rewritten when a run renames the dataset.
	ReferenceFiles []string `json:"reference_files" yaml:"reference_files" mapstructure:"reference_files"`
}

// PublishConfig holds settings for issue and pull-request side effects.
type PublishConfig struct {
	// Repo is the owner/name slug passed to gh (empty = current repo).
	Repo string `json:"repo" yaml:"repo" mapstructure:"repo"`

	// BaseBranch is the pull-request target.
	BaseBranch string `json:"base_branch" yaml:"base_branch" mapstructure:"base_branch"`

	// BranchPrefix prefixes generated branch names.
	BranchPrefix string `json:"branch_prefix" yaml:"branch_prefix" mapstructure:"branch_prefix"`

	// Labels are attached to created issues.
	Labels []string `json:"labels" yaml:"labels" mapstructure:"labels"`
}

// AuditConfig locates the evaluation audit ledger.
type AuditConfig struct {
	// DBPath is the SQLite database holding evaluation runs.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// ExportDir receives YAML exports of individual runs.
	ExportDir string `json:"export_dir" yaml:"export_dir" mapstructure:"export_dir"`
}

// MetricsConfig configures run metrics.
type MetricsConfig struct {
	// PushgatewayURL receives metrics at the end of each run ("" disables pushing).
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" mapstructure:"pushgateway_url"`

	// Job is the Pushgateway job label.
	Job string `json:"job" yaml:"job" mapstructure:"job"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all stage configurations for the pipeline.
type Config struct {
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Feed       FeedConfig       `json:"feed" yaml:"feed" mapstructure:"feed"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation" mapstructure:"evaluation"`
	Publish    PublishConfig    `json:"publish" yaml:"publish" mapstructure:"publish"`
	Audit      AuditConfig      `json:"audit" yaml:"audit" mapstructure:"audit"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
