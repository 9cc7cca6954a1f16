package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvider() error {
	if c.Provider.BaseURL != "" {
		parsed, err := url.Parse(c.Provider.BaseURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
		}
	}
	if !strings.Contains(c.Provider.GalleryPath, galleryPathPlaceholder) {
		return fmt.Errorf("provider.gallery_path must contain %s", galleryPathPlaceholder)
	}
	if c.Provider.Proxy != "" {
		if _, err := url.Parse(c.Provider.Proxy); err != nil {
			return fmt.Errorf("provider.proxy: %w", err)
		}
	}
	if c.Provider.TimeoutSeconds < 0 {
		return errors.New("provider.timeout_seconds must be positive")
	}
	if c.Provider.RequestsPerSecond < 0 {
		return errors.New("provider.requests_per_second must be >= 0")
	}
	if c.Provider.CacheTTLHours < 0 {
		return errors.New("provider.cache_ttl_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	p := c.Processing
	if p.Workers < 1 || p.Workers > maxWorkers {
		return fmt.Errorf("processing.workers must be between 1 and %d", maxWorkers)
	}
	if p.DispatchDelaySeconds < 0 {
		return errors.New("processing.dispatch_delay_seconds must be >= 0")
	}
	if p.JobTimeoutSeconds < 1 {
		return errors.New("processing.job_timeout_seconds must be >= 1")
	}
	if p.DiskLimitMB < 0 {
		return errors.New("processing.disk_limit_mb must be >= 0")
	}
	if p.BatchSize < 1 {
		return errors.New("processing.batch_size must be >= 1")
	}
	if p.CacheSize < 1 {
		return errors.New("processing.cache_size must be >= 1")
	}
	if p.MinFreeSpaceMB < 0 {
		return errors.New("processing.min_free_space_mb must be >= 0")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if c.Translation.Enabled && c.Translation.DictionaryPath == "" {
		return errors.New("translation.dictionary_path must be set when translation.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
