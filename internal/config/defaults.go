package config

const (
	defaultConfigPath            = "~/.config/mangameta/config.toml"
	defaultDataDir               = "~/.local/share/mangameta"
	defaultLogDir                = "~/.local/share/mangameta/logs"
	defaultProviderBaseURL       = "https://nhentai.net"
	defaultProviderGalleryPath   = "/api/gallery/{id}"
	defaultProviderUserAgent     = "mangameta/dev"
	defaultProviderTimeout       = 10
	defaultProviderRPS           = 2
	defaultWorkers               = 5
	defaultDispatchDelaySeconds  = 2
	defaultJobTimeoutSeconds     = 15
	defaultBatchSize             = 10
	defaultCacheSize             = 50
	defaultDictionaryPath        = "~/.config/mangameta/translations.json"
	defaultUntranslatedTagsPath  = "~/.local/share/mangameta/untranslated_tags.json"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	envCookie                    = "MANGAMETA_COOKIE"
	envUserAgent                 = "MANGAMETA_USER_AGENT"
	envProxy                     = "MANGAMETA_PROXY"
	maxWorkers                   = 64
	galleryPathPlaceholder       = "{id}"
	defaultProviderCacheEnabled  = true
	defaultTranslationEnabled    = false
	defaultProcessingBatchMode   = false
	defaultProcessingDiskLimitMB = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Provider: Provider{
			BaseURL:           defaultProviderBaseURL,
			GalleryPath:       defaultProviderGalleryPath,
			UserAgent:         defaultProviderUserAgent,
			TimeoutSeconds:    defaultProviderTimeout,
			RequestsPerSecond: defaultProviderRPS,
			CacheEnabled:      defaultProviderCacheEnabled,
		},
		Processing: Processing{
			Workers:              defaultWorkers,
			DispatchDelaySeconds: defaultDispatchDelaySeconds,
			JobTimeoutSeconds:    defaultJobTimeoutSeconds,
			DiskLimitMB:          defaultProcessingDiskLimitMB,
			BatchMode:            defaultProcessingBatchMode,
			BatchSize:            defaultBatchSize,
			CacheSize:            defaultCacheSize,
		},
		Translation: Translation{
			Enabled:          defaultTranslationEnabled,
			DictionaryPath:   defaultDictionaryPath,
			UntranslatedPath: defaultUntranslatedTagsPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
