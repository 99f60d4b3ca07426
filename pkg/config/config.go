// Package config implements driftscan's koanf-based multi-format
// configuration loader, adapted from the teacher's pkg/config: same
// Load/LoadConfig/LoadOrDefault/FindConfigFile skeleton and the same
// aggregate-errors-with-errors.Join Validate() discipline, re-pointed at
// driftscan's own schema (detector toggles, thresholds, store layout,
// call-graph/reachability defaults, workspace backup policy).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all driftscan configuration.
type Config struct {
	Detectors  DetectorConfig  `koanf:"detectors" toml:"detectors"`
	Thresholds ThresholdConfig `koanf:"thresholds" toml:"thresholds"`
	Duplicates DuplicateConfig `koanf:"duplicates" toml:"duplicates"`
	Exclude    ExcludeConfig   `koanf:"exclude" toml:"exclude"`
	Cache      CacheConfig     `koanf:"cache" toml:"cache"`
	Output     OutputConfig    `koanf:"output" toml:"output"`
	Store      StoreConfig     `koanf:"store" toml:"store"`
	CallGraph  CallGraphConfig `koanf:"call_graph" toml:"call_graph"`
	Workspace  WorkspaceConfig `koanf:"workspace" toml:"workspace"`
}

// DetectorConfig controls which detector categories run and the
// scanner service's worker/timeout knobs (§4.4).
type DetectorConfig struct {
	Routes        bool  `koanf:"routes" toml:"routes"`
	Envelope      bool  `koanf:"envelope" toml:"envelope"`
	Auth          bool  `koanf:"auth" toml:"auth"`
	Errors        bool  `koanf:"errors" toml:"errors"`
	DataAccess    bool  `koanf:"data_access" toml:"data_access"`
	Performance   bool  `koanf:"performance" toml:"performance"`
	Structural    bool  `koanf:"structural" toml:"structural"`
	Documentation bool  `koanf:"documentation" toml:"documentation"`
	Security      bool  `koanf:"security" toml:"security"`
	Testing       bool  `koanf:"testing" toml:"testing"`
	Config        bool  `koanf:"config" toml:"config"`
	Workers       int   `koanf:"workers" toml:"workers"`
	MaxFileSize   int64 `koanf:"max_file_size" toml:"max_file_size"`
	TimeoutSec    int   `koanf:"timeout_seconds" toml:"timeout_seconds"`
}

// ThresholdConfig holds the global dominance/evidence thresholds shared
// across detectors (§4.3's "minimum-evidence threshold").
type ThresholdConfig struct {
	MinEvidence       int     `koanf:"min_evidence" toml:"min_evidence"`
	ConfidenceHigh    float64 `koanf:"confidence_high" toml:"confidence_high"`
	ConfidenceMedium  float64 `koanf:"confidence_medium" toml:"confidence_medium"`
	ConfidenceLow     float64 `koanf:"confidence_low" toml:"confidence_low"`
	MaxMatchesPerFile int     `koanf:"max_matches_per_file" toml:"max_matches_per_file"`
}

// DuplicateConfig configures pkg/analyzer/duplicates' MinHash/LSH clone
// detector, which the workspace context runs over whole files. The
// engine's normalization and comment-skipping flags are not configurable
// here and keep their defaults.
type DuplicateConfig struct {
	MinTokens           int     `koanf:"min_tokens" toml:"min_tokens"`
	SimilarityThreshold float64 `koanf:"similarity_threshold" toml:"similarity_threshold"`
	ShingleSize         int     `koanf:"shingle_size" toml:"shingle_size"`
	NumHashFunctions    int     `koanf:"num_hash_functions" toml:"num_hash_functions"`
	NumBands            int     `koanf:"num_bands" toml:"num_bands"`
	RowsPerBand         int     `koanf:"rows_per_band" toml:"rows_per_band"`
	MinGroupSize        int     `koanf:"min_group_size" toml:"min_group_size"`
}

// ExcludeConfig defines file exclusion patterns using gitignore-style
// syntax, merged by the walker in the precedence order documented there.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls the content-addressed file cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"`
}

// OutputConfig holds a report format setting. It is loaded and defaults
// to "json", but nothing reads it: the CLI's --format flag (text, json,
// markdown) selects the report format.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"`
}

// StoreConfig selects the Pattern & Variant Store's physical layout.
type StoreConfig struct {
	Layout string `koanf:"layout" toml:"layout"` // "layered-json" | "sqlite"
	Dir    string `koanf:"dir" toml:"dir"`
}

// CallGraphConfig tunes the Call Graph Builder and Reachability Engine.
type CallGraphConfig struct {
	ResolutionBatchSize int `koanf:"resolution_batch_size" toml:"resolution_batch_size"`
	MaxDepth            int `koanf:"max_depth" toml:"max_depth"`
	MaxPaths            int `koanf:"max_paths" toml:"max_paths"`
}

// WorkspaceConfig tunes C9's project registry and backup retention.
type WorkspaceConfig struct {
	ContextCacheTTLSec int `koanf:"context_cache_ttl_seconds" toml:"context_cache_ttl_seconds"`
	BackupRetainCount  int `koanf:"backup_retain_count" toml:"backup_retain_count"`
}

// DefaultConfig returns a config with sensible defaults per §4-§6.
func DefaultConfig() *Config {
	return &Config{
		Detectors: DetectorConfig{
			Routes: true, Envelope: true, Auth: true, Errors: true,
			DataAccess: true, Performance: true, Structural: true,
			Documentation: true, Security: true, Testing: true, Config: true,
			Workers:     0, // 0 => runtime.NumCPU(), clamped to [1,16]
			MaxFileSize: 5 * 1024 * 1024,
			TimeoutSec:  300,
		},
		Thresholds: ThresholdConfig{
			MinEvidence:       2,
			ConfidenceHigh:    0.85,
			ConfidenceMedium:  0.65,
			ConfidenceLow:     0.40,
			MaxMatchesPerFile: 10000,
		},
		Duplicates: DuplicateConfig{
			MinTokens:           30,
			SimilarityThreshold: 0.80,
			ShingleSize:         5,
			NumHashFunctions:    200,
			NumBands:            20,
			RowsPerBand:         10,
			MinGroupSize:        2,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*_test.go", "*_test.ts", "*_test.py", "*.spec.ts", "*.spec.js",
				"*_spec.rb", "**/*_test/**", "**/test/**", "**/tests/**", "**/spec/**",
				"*.min.js", "*.min.css", "*.lock", "go.sum",
				"vendor/", "node_modules/", "third_party/", "external/",
				".git/", ".drift/", "dist/", "build/", "target/", "out/", "bin/",
				"__pycache__/", ".venv/", "venv/", "site-packages/",
				".bundle/", "sorbet/", ".yarn/", "coverage/", ".nyc_output/",
				"**/mocks/", "**/*.gen.go", "**/*.generated.go", "**/*.pb.go",
				"**/generated/", "**/gen/", "**/*.auto.ts",
				".idea/", ".vscode/", ".vs/",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{Enabled: true, Dir: ".drift/cache", TTL: 24},
		Output: OutputConfig{Format: "json"},
		Store:  StoreConfig{Layout: "layered-json", Dir: ".drift/patterns"},
		CallGraph: CallGraphConfig{
			ResolutionBatchSize: 50,
			MaxDepth:            8,
			MaxPaths:            64,
		},
		Workspace: WorkspaceConfig{
			ContextCacheTTLSec: 300,
			BackupRetainCount:  10,
		},
	}
}

// Load loads configuration from a file, dispatching the parser by
// extension.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var p koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		p = toml.Parser()
	case ".yaml", ".yml":
		p = yaml.Parser()
	case ".json":
		p = json.Parser()
	default:
		p = toml.Parser()
	}

	if err := k.Load(file.Provider(path), p); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches standard locations for a driftscan config file.
func FindConfigFile() string {
	names := []string{"driftscan.toml", "driftscan.yaml", "driftscan.yml", "driftscan.json"}
	dirs := []string{".", ".drift"}
	for _, dir := range dirs {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOption configures how configuration is loaded.
type LoadOption func(*loadOptions)

type loadOptions struct{ path string }

// WithPath specifies an explicit config file path.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// LoadResult contains the loaded configuration and its source path.
type LoadResult struct {
	Config *Config
	Source string
}

// LoadConfig loads configuration with the given options, validating the
// result before returning it.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var cfg *Config
	var source string
	var err error

	if o.path != "" {
		if _, statErr := os.Stat(o.path); os.IsNotExist(statErr) {
			return nil, fmt.Errorf("config file not found: %s", o.path)
		}
		cfg, err = Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", o.path, err)
		}
		source = o.path
	} else {
		source = FindConfigFile()
		if source == "" {
			cfg = DefaultConfig()
		} else {
			cfg, err = Load(source)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", source, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &LoadResult{Config: cfg, Source: source}, nil
}

// LoadOrDefault loads config from standard locations or returns defaults.
func LoadOrDefault() (*Config, error) {
	result, err := LoadConfig()
	if err != nil {
		if FindConfigFile() == "" {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return result.Config, nil
}

// Validate checks that all config values are within acceptable ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Detectors.Workers < 0 {
		errs = append(errs, errors.New("detectors.workers must be non-negative"))
	}
	if c.Detectors.Workers > 16 {
		errs = append(errs, errors.New("detectors.workers must be at most 16"))
	}
	if c.Detectors.MaxFileSize < 0 {
		errs = append(errs, errors.New("detectors.max_file_size must be non-negative"))
	}
	if c.Detectors.TimeoutSec < 1 {
		errs = append(errs, errors.New("detectors.timeout_seconds must be at least 1"))
	}

	if c.Thresholds.MinEvidence < 1 {
		errs = append(errs, errors.New("thresholds.min_evidence must be at least 1"))
	}
	for name, v := range map[string]float64{
		"confidence_high": c.Thresholds.ConfidenceHigh, "confidence_medium": c.Thresholds.ConfidenceMedium,
		"confidence_low": c.Thresholds.ConfidenceLow,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("thresholds.%s must be between 0 and 1", name))
		}
	}
	if c.Thresholds.MaxMatchesPerFile < 1 {
		errs = append(errs, errors.New("thresholds.max_matches_per_file must be at least 1"))
	}

	if c.Duplicates.MinTokens < 1 {
		errs = append(errs, errors.New("duplicates.min_tokens must be at least 1"))
	}
	if c.Duplicates.SimilarityThreshold < 0 || c.Duplicates.SimilarityThreshold > 1 {
		errs = append(errs, errors.New("duplicates.similarity_threshold must be between 0 and 1"))
	}
	if c.Duplicates.ShingleSize < 1 {
		errs = append(errs, errors.New("duplicates.shingle_size must be at least 1"))
	}
	if c.Duplicates.NumHashFunctions < 1 || c.Duplicates.NumBands < 1 || c.Duplicates.RowsPerBand < 1 {
		errs = append(errs, errors.New("duplicates.num_hash_functions/num_bands/rows_per_band must be at least 1"))
	} else if c.Duplicates.NumHashFunctions != c.Duplicates.NumBands*c.Duplicates.RowsPerBand {
		errs = append(errs, fmt.Errorf(
			"duplicates.num_hash_functions (%d) should equal num_bands (%d) * rows_per_band (%d) = %d",
			c.Duplicates.NumHashFunctions, c.Duplicates.NumBands, c.Duplicates.RowsPerBand,
			c.Duplicates.NumBands*c.Duplicates.RowsPerBand))
	}
	if c.Duplicates.MinGroupSize < 2 {
		errs = append(errs, errors.New("duplicates.min_group_size must be at least 2"))
	}

	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must be non-negative"))
	}

	if c.Store.Layout != "layered-json" && c.Store.Layout != "sqlite" {
		errs = append(errs, fmt.Errorf("store.layout must be layered-json or sqlite, got %q", c.Store.Layout))
	}

	if c.CallGraph.ResolutionBatchSize < 1 {
		errs = append(errs, errors.New("call_graph.resolution_batch_size must be at least 1"))
	}
	if c.CallGraph.MaxDepth < 1 {
		errs = append(errs, errors.New("call_graph.max_depth must be at least 1"))
	}
	if c.CallGraph.MaxPaths < 1 {
		errs = append(errs, errors.New("call_graph.max_paths must be at least 1"))
	}

	if c.Workspace.BackupRetainCount < 0 {
		errs = append(errs, errors.New("workspace.backup_retain_count must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsFileTooLarge checks if a file exceeds the configured maximum size.
func IsFileTooLarge(size, maxSize int64) bool {
	if maxSize <= 0 {
		return false
	}
	return size > maxSize
}
