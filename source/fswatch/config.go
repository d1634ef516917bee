package fswatch

import "github.com/randalmurphal/sigbus/config"

// PathsFromConfig reads the "paths" string-slice key from cfg, or
// defaultPaths if absent or not convertible.
func PathsFromConfig(cfg config.Config, defaultPaths []string) []string {
	return cfg.StringSlice("paths", defaultPaths)
}

// OptionsFromConfig reads watcher settings from cfg and returns the
// equivalent Option set: "name" only, since logger/onError are callback
// values that don't round-trip through a plain config map.
func OptionsFromConfig(cfg config.Config) []Option {
	var opts []Option
	if cfg.Has("name") {
		opts = append(opts, WithName(cfg.String("name", "fswatch")))
	}
	return opts
}
