// Package observability holds the process-wide loggers shared by jobd's
// commands and supervisor loop.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by jobcfg and jobstat. It is console-encoded
// and defaults to info level; InitCLI adjusts it once flags are parsed.
var CLILogger = mustConsoleLogger(zapcore.InfoLevel)

// SupervisorLogger is the logger used by the running supervisor loop. It is
// JSON-encoded so it can be captured by an init system or log shipper.
var SupervisorLogger = mustJSONLogger(zapcore.InfoLevel)

// InitCLI reconfigures CLILogger's level. Called once from a command's
// PersistentPreRun after flags are parsed.
func InitCLI(verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	CLILogger = mustConsoleLogger(level)
}

// InitSupervisor reconfigures SupervisorLogger's level and encoding.
func InitSupervisor(verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	SupervisorLogger = mustJSONLogger(level)
}

// Sync flushes any buffered log entries. Callers should defer this on all
// process exit paths; errors syncing stderr are expected on some platforms
// and are intentionally ignored.
func Sync() {
	_ = CLILogger.Sync()
	_ = SupervisorLogger.Sync()
}

func mustConsoleLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = ""
	logger, err := cfg.Build()
	if err != nil {
		// A logger construction failure here means the process cannot
		// report anything useful; fall back to zap's no-op logger rather
		// than panic, so commands can still return a plain error.
		return zap.NewNop()
	}
	return logger
}

func mustJSONLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
