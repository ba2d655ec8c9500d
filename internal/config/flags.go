package config

import "flag"

// Flags holds the command-line overrides bound to a flag set.
type Flags struct {
	Config    *string
	Debug     *bool
	Scene     *int
	Animation *int
	Time      *float64
}

// BindFlags registers the shared overrides on fs. Negative scene and
// animation values and a negative time mean "not set".
func BindFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config:    fs.String("config", "", "Path to config file"),
		Debug:     fs.Bool("debug", false, "Enable debug logging"),
		Scene:     fs.Int("scene", -1, "Scene index (default: document default scene)"),
		Animation: fs.Int("animation", -1, "Animation to enable before assembling"),
		Time:      fs.Float64("time", -1, "Animation time in seconds"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.Config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.Debug {
		cfg.Logging.Level = "debug"
	}
	if *f.Scene >= 0 {
		cfg.Scene.Scene = *f.Scene
	}
	if *f.Animation >= 0 {
		cfg.Scene.Animation = *f.Animation
	}
	if *f.Time >= 0 {
		cfg.Scene.Time = float32(*f.Time)
	}
}
