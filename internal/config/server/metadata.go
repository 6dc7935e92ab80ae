package server

// MetadataServerConfig holds local mirror store configuration
type MetadataServerConfig struct {
	Type   string               `mapstructure:"type"   yaml:"type"`
	SQLite MetadataSQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration.
// The sync cursors live in StatePath so that resetting the mirror
// never touches them implicitly.
type MetadataSQLiteConfig struct {
	Path      string `mapstructure:"path"       yaml:"path"`
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}
