// Package config loads and validates weft configuration from flags,
// environment, and config files.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	WorkflowsDir string        `mapstructure:"workflows_dir"`
	WorkspaceDir string        `mapstructure:"workspace_dir"`
	MaxParallel  int           `mapstructure:"max_parallel"`
	StepTimeout  time.Duration `mapstructure:"step_timeout"`

	Match    MatchConfig    `mapstructure:"match"`
	Gates    GatesConfig    `mapstructure:"gates"`
	History  HistoryConfig  `mapstructure:"history"`
	Learning LearningConfig `mapstructure:"learning"`
	Log      LogConfig      `mapstructure:"log"`

	// Agents maps agent names to the shell command that implements
	// them. Steps naming an unconfigured agent fail at dispatch.
	Agents map[string]string `mapstructure:"agents"`

	NoColor bool `mapstructure:"no_color"`
	Quiet   bool `mapstructure:"quiet"`
}

// MatchConfig configures the task matcher.
type MatchConfig struct {
	// MinScore is the exclusive lower bound a workflow must score to
	// be considered a match.
	MinScore float64 `mapstructure:"min_score"`
}

// GatesConfig configures quality gate evaluation.
type GatesConfig struct {
	// ApprovalTimeout bounds how long a manual gate waits for an
	// approval signal; expiry counts as rejection.
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`

	// AutoApprove makes manual gates pass without prompting. Intended
	// for unattended runs.
	AutoApprove bool `mapstructure:"auto_approve"`
}

// HistoryConfig configures the execution history recorder.
type HistoryConfig struct {
	// Backend selects the storage backend: "json" or "sqlite".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	DBPath  string `mapstructure:"db_path"`
}

// LearningConfig configures the pattern-mining engine.
type LearningConfig struct {
	// MinOccurrences is how often an agent-sequence signature must
	// recur before a draft workflow is proposed.
	MinOccurrences int `mapstructure:"min_occurrences"`

	// MaxRecords caps how much history one mining pass reads.
	MaxRecords int `mapstructure:"max_records"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.WorkflowsDir == "" {
		return fmt.Errorf("workflows_dir cannot be empty")
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be positive, got %s", c.StepTimeout)
	}
	switch c.History.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("history.backend must be json or sqlite, got %q", c.History.Backend)
	}
	if c.Learning.MinOccurrences < 1 {
		return fmt.Errorf("learning.min_occurrences must be at least 1, got %d", c.Learning.MinOccurrences)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
