// Package config handles gltftool configuration loading and management.
package config

// Config holds all tool settings.
type Config struct {
	Load    LoadConfig    `yaml:"load"`
	Scene   SceneConfig   `yaml:"scene"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadConfig controls where external buffers and images are looked up.
type LoadConfig struct {
	AssetDirs []string `yaml:"asset_dirs"` // Extra directories searched after the file's own
}

// SceneConfig selects what gets assembled.
type SceneConfig struct {
	Scene       int     `yaml:"scene"`     // -1 selects the document default
	Animation   int     `yaml:"animation"` // -1 leaves the rest pose
	Time        float32 `yaml:"time"`
	AspectRatio float32 `yaml:"aspect_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scene: SceneConfig{
			Scene:       -1,
			Animation:   -1,
			AspectRatio: 16.0 / 9.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
