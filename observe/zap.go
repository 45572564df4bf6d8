package observe

import (
	"context"

	"go.uber.org/zap"
)

// zapLogger adapts a *zap.Logger to Logger.
type zapLogger struct {
	logger *zap.Logger
}

// NewZapLogger returns a Logger backed by l. A nil l yields a no-op logger.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{logger: l}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.logger.Debug(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.logger.Info(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.logger.Warn(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.logger.Error(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) WithMessage(meta MessageMeta) Logger {
	return &zapLogger{logger: l.logger.With(toZap(context.Background(), meta.fields())...)}
}

func toZap(ctx context.Context, fields []Field) []zap.Field {
	corr := correlation(ctx)
	out := make([]zap.Field, 0, len(fields)+len(corr))
	for _, f := range fields {
		if isRedactedField(f.Key) {
			out = append(out, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	for k, v := range corr {
		out = append(out, zap.String(k, v))
	}
	return out
}

var _ Logger = (*zapLogger)(nil)
