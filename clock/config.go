package clock

import "github.com/randalmurphal/sigbus/config"

// IntervalOptionsFromConfig reads interval-clock settings from cfg and
// returns the equivalent IntervalOption set: "backpressure" (one of
// "block"/"drop"/"adaptive"), "maxCatchUpTicks", and "name". Keys absent
// from cfg leave the corresponding default untouched.
func IntervalOptionsFromConfig(cfg config.Config) []IntervalOption {
	var opts []IntervalOption

	if cfg.Has("backpressure") {
		switch cfg.String("backpressure", string(PolicyBlock)) {
		case string(PolicyDrop):
			opts = append(opts, WithBackpressure(PolicyDrop))
		case string(PolicyAdaptive):
			opts = append(opts, WithBackpressure(PolicyAdaptive))
		default:
			opts = append(opts, WithBackpressure(PolicyBlock))
		}
	}
	if cfg.Has("maxCatchUpTicks") {
		opts = append(opts, WithMaxCatchUpTicks(cfg.Int("maxCatchUpTicks", 3)))
	}
	if cfg.Has("name") {
		opts = append(opts, WithName(cfg.String("name", "interval")))
	}

	return opts
}
