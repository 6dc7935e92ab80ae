package server

// RemoteServerConfig describes how to reach the identity server owner API.
type RemoteServerConfig struct {
	URL     string `mapstructure:"url"     yaml:"url"`
	Token   string `mapstructure:"token"   yaml:"token"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

// DriveServerConfig identifies the photo drive on the remote.
type DriveServerConfig struct {
	Alias string `mapstructure:"alias" yaml:"alias"`
	Type  string `mapstructure:"type"  yaml:"type"`
}

type PushServerConfig struct {
	Enabled        bool   `mapstructure:"enabled"         yaml:"enabled"`
	ReconnectDelay string `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
}

type APIServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}
