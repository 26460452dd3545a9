// Package logger holds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger. It is a no-op logger until Init is called.
var Log = zap.NewNop()

// Init builds Log for the given level. When logFile is set the production
// (JSON) encoder is used and output goes to both the file and stdout.
func Init(level string, logFile string) error {
	return InitTo(level, logFile, "")
}

// InitTo is Init with an explicit console stream ("stdout" or "stderr").
// Commands that write their payload to stdout pass "stderr" so log lines
// never mix into it. An empty console keeps zap's defaults.
func InitTo(level, logFile, console string) error {
	built, err := buildConfig(level, logFile, console).Build()
	if err != nil {
		return err
	}
	Log = built

	return nil
}

func buildConfig(level, logFile, console string) zap.Config {
	var config zap.Config

	if logFile != "" {
		config = zap.NewProductionConfig()
		if console == "" {
			console = "stdout"
		}
		config.OutputPaths = []string{logFile, console}
	} else {
		config = zap.NewDevelopmentConfig()
		if console != "" {
			config.OutputPaths = []string{console}
		}
	}

	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	return config
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ForRun returns a child logger tagged with an ingestion run id.
func ForRun(runID string) *zap.Logger {
	return Log.With(zap.String("runId", runID))
}

func Sync() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}
