package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	if err := c.normalizeTranslation(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	c.Provider.GalleryPath = strings.TrimSpace(c.Provider.GalleryPath)
	if c.Provider.GalleryPath == "" {
		c.Provider.GalleryPath = defaultProviderGalleryPath
	}
	c.Provider.Cookie = envFallback(c.Provider.Cookie, envCookie)
	c.Provider.UserAgent = envFallback(c.Provider.UserAgent, envUserAgent)
	if c.Provider.UserAgent == "" {
		c.Provider.UserAgent = defaultProviderUserAgent
	}
	c.Provider.Proxy = envFallback(c.Provider.Proxy, envProxy)
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeTranslation() error {
	var err error
	if c.Translation.DictionaryPath, err = expandPath(strings.TrimSpace(c.Translation.DictionaryPath)); err != nil {
		return fmt.Errorf("translation.dictionary_path: %w", err)
	}
	if strings.TrimSpace(c.Translation.UntranslatedPath) == "" {
		c.Translation.UntranslatedPath = defaultUntranslatedTagsPath
	}
	if c.Translation.UntranslatedPath, err = expandPath(c.Translation.UntranslatedPath); err != nil {
		return fmt.Errorf("translation.untranslated_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envFallback keeps an explicit value and otherwise reads the named variable.
func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(key))
}
