// Package obslog configures the engine's structured logger, separate
// from internal/ux's terminal rendering: obslog is for operational
// diagnostics (workflow events and event-observer failures, logged through
// internal/events), ux is for the human-facing command output.
//
// The teacher itself only calls fmt.Printf/fmt.Fprintf for its console
// output and has no structured logger at all; this package is grounded
// on theRebelliousNerd-codenerd's go.uber.org/zap dependency, the one
// example repo in the pack that wires zap for this exact purpose.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's behavior.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// JSON selects JSON-encoded output; false uses zap's console encoder,
	// matching text-mode CLI output conventions.
	JSON bool
}

// New builds a *zap.Logger from cfg. An unrecognized Level falls back to
// info.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Level)) // leaves level at info on parse failure
	}

	zcfg := zap.NewProductionConfig()
	if !cfg.JSON {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true

	return zcfg.Build()
}

// Nop returns a logger that discards everything, used by tests and any
// caller that hasn't configured logging explicitly.
func Nop() *zap.Logger {
	return zap.NewNop()
}
