package bus

import "github.com/randalmurphal/sigbus/config"

// OptionsFromConfig reads bus settings from cfg and returns the equivalent
// Option set. Synchronous dispatch has no buffer or concurrency knobs of
// its own, so the only setting read here is "name", the bus's logging and
// metrics identity.
func OptionsFromConfig(cfg config.Config) []Option {
	var opts []Option
	if cfg.Has("name") {
		opts = append(opts, WithName(cfg.String("name", "bus")))
	}
	return opts
}
