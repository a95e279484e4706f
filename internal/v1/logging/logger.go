// Package logging provides the secondary, context-scoped structured logger
// used for a handful of cross-cutting call sites; most of the codebase logs
// directly through log/slog, matching the dominant idiom observed in the
// teacher codebase.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	PlayerIDKey      contextKey = "player_id"
	RoomIDKey        contextKey = "room_id"
)

// Initialize sets up the global logger based on the environment.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if development {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		logger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger instance.
func GetLogger() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}

	if cid, ok := ctx.Value(CorrelationIDKey).(string); ok {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	if pid, ok := ctx.Value(PlayerIDKey).(string); ok {
		fields = append(fields, zap.String("player_id", pid))
	}
	if rid, ok := ctx.Value(RoomIDKey).(string); ok {
		fields = append(fields, zap.String("room_id", rid))
	}

	fields = append(fields, zap.String("service", "banter-bus-core-api"))

	return fields
}

// Redact drops the configured nested keys from a response payload before it
// is logged, implementing the logging-exclusion policy of §4.1 (e.g.
// dropping "avatar" under "players" so opaque binary blobs never hit logs).
// table maps a top-level field name to the nested keys to strip from each
// element of that field, when the field is a []map[string]any.
func Redact(payload map[string]any, table map[string][]string) map[string]any {
	if payload == nil {
		return nil
	}

	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for field, drop := range table {
		raw, ok := out[field]
		if !ok {
			continue
		}
		items, ok := raw.([]map[string]any)
		if !ok {
			continue
		}
		redacted := make([]map[string]any, len(items))
		for i, item := range items {
			clone := make(map[string]any, len(item))
			for k, v := range item {
				clone[k] = v
			}
			for _, key := range drop {
				if _, present := clone[key]; present {
					clone[key] = "<redacted>"
				}
			}
			redacted[i] = clone
		}
		out[field] = redacted
	}

	return out
}
