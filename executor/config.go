package executor

import (
	"github.com/randalmurphal/sigbus/config"
	sigerrors "github.com/randalmurphal/sigbus/errors"
)

// OptionsFromConfig reads worker-pool settings from cfg and returns the
// equivalent Option set: "timeout" (duration), and a retry policy built
// from "retryMaxAttempts" (int), "retryInitialBackoff" (duration),
// "retryMaxBackoff" (duration), "retryBackoffFactor" (float), and
// "retryJitter" (float). Keys absent from cfg leave the corresponding
// sigerrors.DefaultRetry field untouched.
func OptionsFromConfig(cfg config.Config) []Option {
	var opts []Option

	if cfg.Has("timeout") {
		opts = append(opts, WithTimeout(cfg.Duration("timeout", 0)))
	}

	retry := sigerrors.DefaultRetry
	changed := false
	if cfg.Has("retryMaxAttempts") {
		retry.MaxAttempts = cfg.Int("retryMaxAttempts", retry.MaxAttempts)
		changed = true
	}
	if cfg.Has("retryInitialBackoff") {
		retry.InitialBackoff = cfg.Duration("retryInitialBackoff", retry.InitialBackoff)
		changed = true
	}
	if cfg.Has("retryMaxBackoff") {
		retry.MaxBackoff = cfg.Duration("retryMaxBackoff", retry.MaxBackoff)
		changed = true
	}
	if cfg.Has("retryBackoffFactor") {
		retry.BackoffFactor = cfg.Float("retryBackoffFactor", retry.BackoffFactor)
		changed = true
	}
	if cfg.Has("retryJitter") {
		retry.Jitter = cfg.Float("retryJitter", retry.Jitter)
		changed = true
	}
	if changed {
		opts = append(opts, WithRetry(retry))
	}

	return opts
}

// SizeFromConfig reads the "workerPoolSize" int key from cfg, or
// defaultSize if absent.
func SizeFromConfig(cfg config.Config, defaultSize int) int {
	return cfg.Int("workerPoolSize", defaultSize)
}
