// Package core collects the provider-agnostic configuration knobs that
// spec.md §3 groups under llm_config/tool_context, so that retry caps,
// backoff schedules, and delegation limits are exposed as configuration
// rather than hard-coded across the Generator, Verifier, and Aletheia
// Planner. Individual components keep their own zero-value defaults
// (core/verifier.Config, core/aletheia.Options); RunConfig is the single
// place a host application sets them all at once when wiring a run.
package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aletheialabs/hplan-core/core/aletheia"
	"github.com/aletheialabs/hplan-core/core/verifier"
	"github.com/aletheialabs/hplan-core/runtime/agent/model"
)

// Spec-mandated defaults (§9 Open Question: token-budget and retry-cap
// constants are configuration, seeded with the spec's stricter values).
const (
	DefaultMaxTokens              = 4096
	DefaultMaxVerifierRetries     = 4
	DefaultVerifierBackoffCeiling = 10 * time.Second
	DefaultMaxDepth               = 5
	DefaultMaxIterations          = 3
	DefaultIterationCeiling       = 6
	DefaultPathTimeout            = 10 * time.Minute
	DefaultMaxWorkspaceFiles      = 60
)

// RunConfig bounds one root objective's run end to end: the model class
// requested of every LLM-backed collaborator, the Node's retry and
// delegation limits, and the Aletheia Planner's fan-out limits. The zero
// value is valid and normalizes to the spec's defaults via WithDefaults.
//
// Only VerifierConfig and AletheiaOptions project these fields onto a
// component. ModelClass, MaxTokens and MaxDepth are carried for the host
// to pass on itself (e.g. into node.Config), and PathTimeout and
// MaxWorkspaceFiles are not applied anywhere: the Aletheia Planner uses
// its own fixed 10-minute path timeout and 60-file listing cap.
type RunConfig struct {
	// ModelClass selects the model tier for a run. node.Config passes it to
	// the Planner; the Verifier, Reviser and Aletheia Planner always
	// request model.ModelClassPlanner.
	ModelClass model.ModelClass `yaml:"modelClass"`
	// MaxTokens is a response-size budget for completion requests. No
	// component reads it: the Generator, Reviser and Aletheia Planner each
	// request 4096 tokens and the Verifier 2048.
	MaxTokens int `yaml:"maxTokens"`

	// MaxDepth caps hierarchical delegation depth (spec.md §4.5).
	MaxDepth int `yaml:"maxDepth"`

	// MaxVerifierRetries caps the Verifier's transport-error retries
	// before it gives up and reports failure up the Node's retry path.
	MaxVerifierRetries int `yaml:"maxVerifierRetries"`
	// VerifierBackoffCeiling caps the delay between verifier retries.
	VerifierBackoffCeiling time.Duration `yaml:"verifierBackoffCeiling"`

	// MaxIterations bounds Aletheia's per-path verify/revise rounds.
	MaxIterations int `yaml:"maxIterations"`
	// IterationCeiling is the hard cap MaxIterations is clamped to,
	// regardless of what a caller requests.
	IterationCeiling int `yaml:"iterationCeiling"`
	// PathTimeout is the soft per-path wall-clock budget before a
	// refining path is abandoned as failed.
	PathTimeout time.Duration `yaml:"pathTimeout"`
	// MaxWorkspaceFiles caps how many sandbox file paths are listed to
	// an Aletheia path verifier per critique call.
	MaxWorkspaceFiles int `yaml:"maxWorkspaceFiles"`
}

// LoadRunConfig reads a YAML document from path and decodes it into a
// RunConfig, applying WithDefaults to any field the file left zero. This
// lets a host check a run's retry/backoff/depth knobs into a config file
// alongside the rest of its deployment configuration, the same way the
// teacher's own test harness loads its YAML-described scenarios.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- host-provided config path
	if err != nil {
		return RunConfig{}, fmt.Errorf("core: read run config: %w", err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("core: parse run config: %w", err)
	}
	return cfg.WithDefaults(), nil
}

// WithDefaults fills every unset field with the spec's stricter default,
// leaving explicit non-zero values untouched.
func (c RunConfig) WithDefaults() RunConfig {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxVerifierRetries <= 0 {
		c.MaxVerifierRetries = DefaultMaxVerifierRetries
	}
	if c.VerifierBackoffCeiling <= 0 {
		c.VerifierBackoffCeiling = DefaultVerifierBackoffCeiling
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.IterationCeiling <= 0 {
		c.IterationCeiling = DefaultIterationCeiling
	}
	if c.PathTimeout <= 0 {
		c.PathTimeout = DefaultPathTimeout
	}
	if c.MaxWorkspaceFiles <= 0 {
		c.MaxWorkspaceFiles = DefaultMaxWorkspaceFiles
	}
	return c
}

// VerifierConfig projects the relevant knobs onto core/verifier.Config.
func (c RunConfig) VerifierConfig() verifier.Config {
	c = c.WithDefaults()
	return verifier.Config{
		MaxRetries:     c.MaxVerifierRetries,
		InitialBackoff: time.Second,
		BackoffCeiling: c.VerifierBackoffCeiling,
	}
}

// AletheiaOptions projects the relevant knobs onto core/aletheia.Options
// for a fan-out of n candidate plans. Aletheia clamps MaxIterations to
// its own hard ceiling independently; IterationCeiling here only governs
// the ceiling applied to this RunConfig's own MaxIterations value.
// PathTimeout and MaxWorkspaceFiles are not projected; aletheia.Options
// has no fields for them.
func (c RunConfig) AletheiaOptions(n int) aletheia.Options {
	c = c.WithDefaults()
	maxIter := c.MaxIterations
	if maxIter > c.IterationCeiling {
		maxIter = c.IterationCeiling
	}
	return aletheia.Options{N: n, MaxIterations: maxIter}
}
