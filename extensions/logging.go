package extensions

import (
	"context"
	"time"

	"go.uber.org/zap"

	mscan "github.com/pumped-fn/mscan-go"
)

// LoggingExtension logs every wrapped operation at debug level and
// failures at warn level.
type LoggingExtension struct {
	mscan.BaseExtension
	logger *zap.Logger
}

// NewLoggingExtension creates a new logging extension
func NewLoggingExtension(logger *zap.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: mscan.NewBaseExtension("logging"),
		logger:        logger.Named("reactive"),
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() error, op *mscan.Operation) error {
	start := time.Now()
	err := next()

	fields := []zap.Field{
		zap.String("op", string(op.Kind)),
		zap.String("name", op.Name),
		zap.Duration("elapsed", time.Since(start)),
	}
	if id, ok := mscan.SessionID.Get(op.Scope); ok {
		fields = append(fields, zap.String("session", id))
	}
	switch op.Kind {
	case mscan.OpWrite:
		fields = append(fields, zap.Int("readers", op.Readers))
	case mscan.OpMerge, mscan.OpLoad:
		fields = append(fields, zap.Int("records", op.Records))
	}

	if err != nil {
		e.logger.Warn("operation failed", append(fields, zap.Error(err))...)
	} else {
		e.logger.Debug("operation completed", fields...)
	}

	return err
}
