// Package config loads repository-level configuration from
// `.thetaconfig`, with `GIT_THETA_*` environment variables overriding
// individual fields — grounded on
// original_source/git_theta/config.py's RepoConfig/PatternConfig/
// ThetaConfigFile shape, and on cmd/entire/cli/settings/settings.go's
// load-then-override pattern for the Go plumbing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/jsonutil"
	"github.com/git-theta/theta/internal/thetaerr"
)

// FileName is the repository-level configuration file, committed
// alongside the checkpoints it governs.
const FileName = ".thetaconfig"

// RepoConfig is the repository-wide configuration: LSH parameters,
// closeness tolerances, and concurrency bounds. Changing the LSH
// fields is a repository-wide breaking change (spec §4.3).
type RepoConfig struct {
	ParameterATOL    float64 `json:"parameter_atol"`
	ParameterRTOL    float64 `json:"parameter_rtol"`
	LSHSignatureSize int     `json:"lsh_signature_size"`
	LSHThreshold     float64 `json:"lsh_threshold"`
	LSHPoolSize      int     `json:"lsh_pool_size"`
	LSHBucketWidth   float64 `json:"lsh_bucket_width"`
	LSHSeed          int64   `json:"lsh_seed"`
	MaxConcurrency   int     `json:"max_concurrency"`
	LowMemory        bool    `json:"low_memory"`
	UpdateType       string  `json:"update_type"`
	UpdateDataPath   string  `json:"update_data_path"`
	CheckpointType   string  `json:"checkpoint_type"`
	LowRankRank      int     `json:"low_rank_rank"`
	// ManualMerge, when true, makes the merge driver treat every
	// parameter both branches changed differently as a hard conflict
	// instead of auto-resolving it with MergeStrategy (spec.md §6's
	// GIT_THETA_MANUAL_MERGE).
	ManualMerge bool `json:"manual_merge"`
	// MergeStrategy names the merge plug-in the filter-driver
	// sub-command applies to a both-changed parameter when ManualMerge
	// is false.
	MergeStrategy string `json:"merge_strategy"`
}

func defaultRepoConfig() RepoConfig {
	return RepoConfig{
		ParameterATOL:    1e-8,
		ParameterRTOL:    1e-5,
		LSHSignatureSize: 16,
		LSHThreshold:     1e-6,
		LSHPoolSize:      10_000,
		LSHBucketWidth:   1e-4,
		LSHSeed:          0,
		MaxConcurrency:   -1,
		LowMemory:        false,
		UpdateType:       "dense",
		UpdateDataPath:   "",
		CheckpointType:   checkpointfmt.Default,
		LowRankRank:      0,
		ManualMerge:      false,
		MergeStrategy:    "take_us",
	}
}

// PatternConfig overrides the checkpoint format used for paths
// matching Pattern (a shell glob, matched with filepath.Match).
type PatternConfig struct {
	Pattern          string `json:"pattern"`
	CheckpointFormat string `json:"checkpoint_format"`
}

// Config is the fully-resolved configuration for a repository.
type Config struct {
	Repo     RepoConfig      `json:"repo"`
	Patterns []PatternConfig `json:"patterns"`
}

type fileForm struct {
	Repo     json.RawMessage `json:"repo"`
	Patterns []PatternConfig `json:"patterns"`
}

// Load reads repoRoot's `.thetaconfig`, applies environment variable
// overrides, and returns the resolved Config. A missing file is not an
// error — it yields defaults, also subject to environment overrides.
func Load(repoRoot string) (*Config, error) {
	cfg := &Config{Repo: defaultRepoConfig()}

	path := filepath.Join(repoRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("reading %s: %w", path, err))
		}
	} else {
		var raw fileForm
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("parsing %s: %w", path, err))
		}
		if len(raw.Repo) > 0 {
			if err := json.Unmarshal(raw.Repo, &cfg.Repo); err != nil {
				return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("parsing %s repo section: %w", path, err))
			}
		}
		cfg.Patterns = raw.Patterns
	}

	applyEnvOverrides(&cfg.Repo)
	return cfg, nil
}

// Save writes cfg to repoRoot's `.thetaconfig`, used by the track
// sub-command to persist a newly tracked pattern's checkpoint format.
func Save(repoRoot string, cfg *Config) error {
	path := filepath.Join(repoRoot, FileName)
	data, err := jsonutil.MarshalIndentWithNewline(cfg, "", "  ")
	if err != nil {
		return thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding %s: %w", path, err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return thetaerr.New(thetaerr.Configuration, fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}

// CheckpointFormatFor resolves which checkpoint format plugin governs
// path: explicit (non-empty) argument first, then the first matching
// pattern, then the repository default (spec §4.6's selection order).
func (c *Config) CheckpointFormatFor(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range c.Patterns {
		if ok, _ := filepath.Match(p.Pattern, path); ok {
			return p.CheckpointFormat
		}
	}
	return c.Repo.CheckpointType
}

func applyEnvOverrides(r *RepoConfig) {
	envFloat("GIT_THETA_PARAMETER_ATOL", &r.ParameterATOL)
	envFloat("GIT_THETA_PARAMETER_RTOL", &r.ParameterRTOL)
	envInt("GIT_THETA_LSH_SIGNATURE_SIZE", &r.LSHSignatureSize)
	envFloat("GIT_THETA_LSH_THRESHOLD", &r.LSHThreshold)
	envInt("GIT_THETA_LSH_POOL_SIZE", &r.LSHPoolSize)
	envFloat("GIT_THETA_LSH_BUCKET_WIDTH", &r.LSHBucketWidth)
	envInt64("GIT_THETA_LSH_SEED", &r.LSHSeed)
	envInt("GIT_THETA_MAX_CONCURRENCY", &r.MaxConcurrency)
	envInt("GIT_THETA_LOW_RANK_RANK", &r.LowRankRank)
	envBool("GIT_THETA_LOW_MEMORY", &r.LowMemory)
	envString("GIT_THETA_UPDATE_TYPE", &r.UpdateType)
	envString("GIT_THETA_UPDATE_DATA_PATH", &r.UpdateDataPath)
	envString("GIT_THETA_CHECKPOINT_TYPE", &r.CheckpointType)
	envBool("GIT_THETA_MANUAL_MERGE", &r.ManualMerge)
	envString("GIT_THETA_MERGE_STRATEGY", &r.MergeStrategy)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func envFloat(name string, dst *float64) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(name string, dst *int) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(name string, dst *int64) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
