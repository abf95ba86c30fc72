package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	ExportDir  string `toml:"export_dir"`
	SkipDir    string `toml:"skip_dir"`
	CurrentDir string `toml:"current_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Search contains default search-request parameters used when a request
// leaves them unset.
type Search struct {
	Queries       []string `toml:"queries"`
	Sites         []string `toml:"sites"`
	Countries     []string `toml:"countries"`
	HoursOld      int      `toml:"hours_old"`
	ResultsWanted int      `toml:"results_wanted"`
	RemoteOnly    bool     `toml:"remote_only"`
}

// Filtering contains the rule-engine inputs: blacklists, country lists, and
// language requirements.
type Filtering struct {
	CompanyBlacklist     []string `toml:"company_blacklist"`
	TitleBlacklist       []string `toml:"title_blacklist"`
	DescriptionBlacklist []string `toml:"description_blacklist"`
	AllowedCountries     []string `toml:"allowed_countries"`
	BlockedCountries     []string `toml:"blocked_countries"`
	RequiredLanguages    []string `toml:"required_languages"`
}

// Enrichment contains LLM connection settings for the enrichment stage.
type Enrichment struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains orchestrator timing and progress-weighting settings.
type Pipeline struct {
	// ProgressSampleInterval is the seconds between collection sub-progress
	// samples while a collection call is in flight.
	ProgressSampleInterval int `toml:"progress_sample_interval"`
	// SessionRetentionSeconds is how long a terminal session stays in the
	// active-session table before eviction. Its snapshot remains on disk.
	SessionRetentionSeconds int `toml:"session_retention_seconds"`
	// Stage weights blend per-stage progress into the overall percentage.
	// They are a heuristic, not a measured property.
	StartupWeight    float64 `toml:"startup_weight"`
	CollectionWeight float64 `toml:"collection_weight"`
	FilteringWeight  float64 `toml:"filtering_weight"`
	EnrichmentWeight float64 `toml:"enrichment_weight"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jobscout.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, export directories, API bind address
//   - Search: default search-request parameters
//   - Filtering: blacklists, country allow/deny lists, language requirements
//   - Enrichment: LLM connection settings for the enrichment stage
//   - Pipeline: orchestrator intervals, retention, stage weights
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Search     Search     `toml:"search"`
	Filtering  Filtering  `toml:"filtering"`
	Enrichment Enrichment `toml:"enrichment"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jobscout/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves a leading tilde against the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jobscout.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Export directories are created on a best-effort basis so the daemon can run
// when user-managed storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ExportDir) != "" {
		_ = os.MkdirAll(c.Paths.ExportDir, 0o755)
	}
	return nil
}

// SessionsDir returns the directory holding session snapshot files.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.Paths.DataDir, "sessions")
}

// PostingsDBPath returns the path of the SQLite posting store.
func (c *Config) PostingsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "postings.db")
}
