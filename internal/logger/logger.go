package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/narwhalmedia/appupdater/internal/config"
)

// New creates a new logger instance based on configuration. Logs go to
// stderr so stdout stays free for command output and progress rendering.
func New(cfg *config.Config) (*zap.Logger, error) {
	return Build(cfg.Server.ServiceName, cfg.Server.Environment, cfg.Observability.LogLevel, cfg.Observability.LogFormat, "stderr")
}

// Build creates a logger writing to the given output paths.
func Build(serviceName, environment, logLevel, logFormat string, outputs ...string) (*zap.Logger, error) {
	var zc zap.Config

	if environment == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if logFormat == "json" {
		zc.Encoding = "json"
	} else {
		zc.Encoding = "console"
	}

	zc.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     environment,
	}

	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = []string{"stderr"}

	zc.EncoderConfig.CallerKey = "caller"
	zc.EncoderConfig.StacktraceKey = "stacktrace"
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}

	if hostname, err := os.Hostname(); err == nil {
		logger = logger.With(zap.String("hostname", hostname))
	}

	return logger, nil
}

// WithSession creates a logger carrying update session fields.
func WithSession(logger *zap.Logger, sessionID, url string) *zap.Logger {
	fields := []zap.Field{}

	if sessionID != "" {
		fields = append(fields, zap.String("session_id", sessionID))
	}

	if url != "" {
		fields = append(fields, zap.String("url", url))
	}

	if len(fields) > 0 {
		return logger.With(fields...)
	}

	return logger
}
