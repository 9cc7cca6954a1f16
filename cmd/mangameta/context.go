package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mangameta/internal/config"
	"mangameta/internal/logging"
	"mangameta/internal/metadata"
	"mangameta/internal/metastore"
	"mangameta/internal/pipeline"
	"mangameta/internal/tagdict"
	"mangameta/internal/tasks"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openStore() (*tasks.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return tasks.Open(cfg.TasksDir(), logger)
}

func (c *commandContext) withStore(fn func(*tasks.Store) error) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	return fn(store)
}

// runtime holds everything a pipeline run needs. close releases the
// metadata cache.
type runtime struct {
	pipeline *pipeline.Pipeline
	store    *tasks.Store
	close    func()
}

// newRuntime wires the provider chain, the optional tag dictionary, and the
// task store for cfg. cfg may carry per-run flag overrides.
func (c *commandContext) newRuntime(cfg *config.Config, requireTranslator bool) (*runtime, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := tasks.Open(cfg.TasksDir(), logger)
	if err != nil {
		return nil, err
	}

	var provider metadata.Provider
	httpProvider, err := metadata.NewHTTPProvider(metadata.HTTPConfig{
		BaseURL:           cfg.Provider.BaseURL,
		GalleryPath:       cfg.Provider.GalleryPath,
		Cookie:            cfg.Provider.Cookie,
		UserAgent:         cfg.Provider.UserAgent,
		Proxy:             cfg.Provider.Proxy,
		Timeout:           cfg.ProviderTimeout(),
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	provider = httpProvider

	closeFn := func() {}
	if cfg.Provider.CacheEnabled {
		cache, err := metastore.Open(cfg.MetadataCachePath())
		if err != nil {
			return nil, fmt.Errorf("open metadata cache: %w", err)
		}
		provider = metastore.NewCachingProvider(cache, httpProvider, cfg.CacheTTL(), logger)
		closeFn = func() { _ = cache.Close() }
	}

	var opts []pipeline.Option
	if cfg.Translation.Enabled || requireTranslator {
		dict, err := tagdict.Load(cfg.Translation.DictionaryPath, logger)
		if err != nil {
			closeFn()
			return nil, err
		}
		untranslatedPath := cfg.Translation.UntranslatedPath
		opts = append(opts,
			pipeline.WithTranslator(dict),
			pipeline.WithUntranslatedSink(func() (int, error) {
				return dict.SaveUntranslated(untranslatedPath)
			}))
	}

	return &runtime{
		pipeline: pipeline.New(cfg, store, provider, logger, opts...),
		store:    store,
		close:    closeFn,
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
