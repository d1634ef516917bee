package store

import "github.com/randalmurphal/sigbus/config"

// FromConfig builds a SignalStore from cfg: a SQLite-backed store rooted at
// "sqlitePath" if that key is present and "durable" is not explicitly
// false, or a NoopStore otherwise.
func FromConfig(cfg config.Config) (SignalStore, error) {
	if cfg.Has("sqlitePath") && cfg.Bool("durable", true) {
		return NewSQLite(cfg.String("sqlitePath", ""))
	}
	return NewNoop(), nil
}
