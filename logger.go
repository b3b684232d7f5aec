package crewkit

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the structured logger used by crewkitd.
// "production" selects JSON output; anything else gets the console encoder.
func NewLogger(env string) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if env == "production" {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.Development = false
		cfg.Encoding = "json"
	}

	return cfg.Build(zap.Fields(zap.String("service", "crewkit")))
}

// requestFields returns the correlation fields every request-scoped log line carries.
func requestFields(ac AuditContext, teamID, actorID string) []zap.Field {
	fields := []zap.Field{
		zap.String("team_id", teamID),
		zap.String("actor_id", actorID),
	}
	if ac.RequestID != "" {
		fields = append(fields, zap.String("request_id", ac.RequestID))
	}
	return fields
}
