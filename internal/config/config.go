package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Provider contains configuration for the metadata source.
type Provider struct {
	BaseURL           string  `toml:"base_url"`
	GalleryPath       string  `toml:"gallery_path"`
	Cookie            string  `toml:"cookie"`
	UserAgent         string  `toml:"user_agent"`
	Proxy             string  `toml:"proxy"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	CacheEnabled      bool    `toml:"cache_enabled"`
	CacheTTLHours     int     `toml:"cache_ttl_hours"`
}

// Processing contains pipeline concurrency and rewrite settings.
type Processing struct {
	Workers              int     `toml:"workers"`
	DispatchDelaySeconds float64 `toml:"dispatch_delay_seconds"`
	JobTimeoutSeconds    int     `toml:"job_timeout_seconds"`
	ToCBZ                bool    `toml:"to_cbz"`
	DryRun               bool    `toml:"dry_run"`
	DiskLimitMB          float64 `toml:"disk_limit_mb"`
	BatchMode            bool    `toml:"batch_mode"`
	BatchSize            int     `toml:"batch_size"`
	CacheSize            int     `toml:"cache_size"`
	MinFreeSpaceMB       int     `toml:"min_free_space_mb"`
}

// Translation contains configuration for tag translation.
type Translation struct {
	Enabled          bool   `toml:"enabled"`
	DictionaryPath   string `toml:"dictionary_path"`
	UntranslatedPath string `toml:"untranslated_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mangameta.
//
// Configuration sections by subsystem:
//   - Paths: task records, metadata cache, and logs
//   - Provider: metadata endpoint, credentials, pacing, and caching
//   - Processing: worker pool, dispatch delay, rewrite options, cache sizing
//   - Translation: tag dictionary and untranslated tag report
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Provider    Provider    `toml:"provider"`
	Processing  Processing  `toml:"processing"`
	Translation Translation `toml:"translation"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is read
// first so provider secrets can live outside the TOML file.
func Load(path string) (*Config, string, bool, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mangameta.toml")
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

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.TasksDir(), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TasksDir returns the directory holding one JSON record per task.
func (c *Config) TasksDir() string {
	return filepath.Join(c.Paths.DataDir, "tasks")
}

// MetadataCachePath returns the SQLite database caching fetched metadata.
func (c *Config) MetadataCachePath() string {
	return filepath.Join(c.Paths.DataDir, "metadata.db")
}

// DispatchDelay returns the pause inserted after every round of submissions.
func (c *Config) DispatchDelay() time.Duration {
	return time.Duration(c.Processing.DispatchDelaySeconds * float64(time.Second))
}

// JobTimeout returns how long the scheduler waits on one job before logging a timeout.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Processing.JobTimeoutSeconds) * time.Second
}

// ProviderTimeout returns the HTTP timeout for metadata requests.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// CacheTTL returns the metadata cache lifetime; zero keeps entries forever.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Provider.CacheTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
