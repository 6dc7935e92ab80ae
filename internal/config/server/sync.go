package server

type SyncServerConfig struct {
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`
	Schedule string `mapstructure:"schedule"  yaml:"schedule"`
	OnStart  bool   `mapstructure:"on_start"  yaml:"on_start"`
}

type LibraryServerConfig struct {
	Debounce        string `mapstructure:"debounce"          yaml:"debounce"`
	MaxRetries      int    `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryBase       string `mapstructure:"retry_base"        yaml:"retry_base"`
	StaleTime       string `mapstructure:"stale_time"        yaml:"stale_time"`
	RebuildPageSize int    `mapstructure:"rebuild_page_size" yaml:"rebuild_page_size"`
}

type PhotosServerConfig struct {
	MonthPageSize int `mapstructure:"month_page_size" yaml:"month_page_size"`
	// Source selects where month pages are read from: "local" or "remote".
	Source string `mapstructure:"source" yaml:"source"`
}
