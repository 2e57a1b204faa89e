// Package obslog configures the zap logger shared by the daemon entry
// point, the server package, and the kv remote backend. The core never
// reaches for a package-level
// global logger; every constructor that needs one takes a *zap.Logger
// explicitly, falling back to zap.NewNop() when the caller passes nil.
package obslog

import "go.uber.org/zap"

// New builds a production-style JSON logger. CLI entry points call this
// once and thread the result through the backend and server
// constructors.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil, so that internal
// packages never have to nil-check their logger field before use.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
