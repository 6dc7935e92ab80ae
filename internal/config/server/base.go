package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	Remote   RemoteServerConfig   `mapstructure:"remote"   yaml:"remote"`
	Drive    DriveServerConfig    `mapstructure:"drive"    yaml:"drive"`
	Sync     SyncServerConfig     `mapstructure:"sync"     yaml:"sync"`
	Library  LibraryServerConfig  `mapstructure:"library"  yaml:"library"`
	Photos   PhotosServerConfig   `mapstructure:"photos"   yaml:"photos"`
	Push     PushServerConfig     `mapstructure:"push"     yaml:"push"`
	API      APIServerConfig      `mapstructure:"api"      yaml:"api"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// ParseDuration parses value and falls back to def if value is empty or invalid.
func ParseDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
