package sim

import (
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to the runtime.Logger interface so
// the match handler can run headless, outside a Nakama server.
type zerologLogger struct {
	zl     zerolog.Logger
	fields map[string]interface{}
}

// NewRuntimeLogger wraps zl as a runtime.Logger.
func NewRuntimeLogger(zl zerolog.Logger) runtime.Logger {
	return &zerologLogger{zl: zl, fields: map[string]interface{}{}}
}

func (l *zerologLogger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

func (l *zerologLogger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l *zerologLogger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *zerologLogger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

func (l *zerologLogger) WithField(key string, value interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologLogger{zl: l.zl.With().Fields(fields).Logger(), fields: merged}
}

func (l *zerologLogger) Fields() map[string]interface{} {
	return l.fields
}
