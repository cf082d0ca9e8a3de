package config

const (
	defaultConfigPath          = "~/.config/metasync/config.toml"
	projectConfigName          = "metasync.toml"
	configEnvVar               = "METASYNC_CONFIG"
	defaultStateDir            = "~/.local/share/metasync"
	defaultLogDir              = "~/.local/share/metasync/logs"
	defaultLogRetentionDays    = 30
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBLanguage        = "fr"
	defaultTMDBRequestTimeout  = 30
	defaultDescriptorName      = ".metas.json"
	defaultAssetsDir           = ".metadatas/tmdb"
	defaultDirectoryWorkers    = 2
	defaultMaxInFlight         = 4
	defaultReserveTokens       = 3
	defaultInitialTokens       = 40
	defaultTokenCapacity       = 40
	defaultReplenishIntervalMS = 250
	defaultAdmissionBackoffMS  = 300
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:               defaultTMDBBaseURL,
			Language:              defaultTMDBLanguage,
			RequestTimeoutSeconds: defaultTMDBRequestTimeout,
		},
		Sync: Sync{
			DescriptorName:   defaultDescriptorName,
			AssetsDir:        defaultAssetsDir,
			DirectoryWorkers: defaultDirectoryWorkers,
		},
		Scheduler: Scheduler{
			MaxInFlight:         defaultMaxInFlight,
			ReserveTokens:       defaultReserveTokens,
			InitialTokens:       defaultInitialTokens,
			Capacity:            defaultTokenCapacity,
			ReplenishIntervalMS: defaultReplenishIntervalMS,
			AdmissionBackoffMS:  defaultAdmissionBackoffMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
