package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		Metadata: MetadataServerConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path:      "./data/mirror.db",
				StatePath: "./data/state.db",
			},
		},
		Remote: RemoteServerConfig{
			URL:     "",
			Token:   "",
			Timeout: "30s",
		},
		Drive: DriveServerConfig{
			Alias: "standard_photos_drive",
			Type:  "photos_drive",
		},
		Sync: SyncServerConfig{
			PageSize: 100,
			Schedule: "@every 15m",
			OnStart:  true,
		},
		Library: LibraryServerConfig{
			Debounce:        "5s",
			MaxRetries:      5,
			RetryBase:       "500ms",
			StaleTime:       "1m",
			RebuildPageSize: 1200,
		},
		Photos: PhotosServerConfig{
			MonthPageSize: 1000,
			Source:        "local",
		},
		Push: PushServerConfig{
			Enabled:        true,
			ReconnectDelay: "5s",
		},
		API: APIServerConfig{
			Enabled: true,
			Address: "127.0.0.1:8788",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.sqlite.state_path", defaults.Metadata.SQLite.StatePath)

	viper.SetDefault("remote.url", defaults.Remote.URL)
	viper.SetDefault("remote.token", defaults.Remote.Token)
	viper.SetDefault("remote.timeout", defaults.Remote.Timeout)

	viper.SetDefault("drive.alias", defaults.Drive.Alias)
	viper.SetDefault("drive.type", defaults.Drive.Type)

	viper.SetDefault("sync.page_size", defaults.Sync.PageSize)
	viper.SetDefault("sync.schedule", defaults.Sync.Schedule)
	viper.SetDefault("sync.on_start", defaults.Sync.OnStart)

	viper.SetDefault("library.debounce", defaults.Library.Debounce)
	viper.SetDefault("library.max_retries", defaults.Library.MaxRetries)
	viper.SetDefault("library.retry_base", defaults.Library.RetryBase)
	viper.SetDefault("library.stale_time", defaults.Library.StaleTime)
	viper.SetDefault("library.rebuild_page_size", defaults.Library.RebuildPageSize)

	viper.SetDefault("photos.month_page_size", defaults.Photos.MonthPageSize)
	viper.SetDefault("photos.source", defaults.Photos.Source)

	viper.SetDefault("push.enabled", defaults.Push.Enabled)
	viper.SetDefault("push.reconnect_delay", defaults.Push.ReconnectDelay)

	viper.SetDefault("api.enabled", defaults.API.Enabled)
	viper.SetDefault("api.address", defaults.API.Address)
}
