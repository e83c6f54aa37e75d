package executor

import (
	"context"
	"io"

	"github.com/sparkify/sparkify-etl/pkg/logger"
	"go.uber.org/zap"
)

type contextKey int

const (
	KeyPrinter contextKey = iota
	ContextLogger
)

// PrinterFromContext returns the writer the running worker prints user facing output to.
func PrinterFromContext(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(KeyPrinter).(io.Writer); ok && w != nil {
		return w
	}

	return io.Discard
}

func LoggerFromContext(ctx context.Context) logger.Logger {
	if l, ok := ctx.Value(ContextLogger).(logger.Logger); ok && l != nil {
		return l
	}

	return zap.NewNop().Sugar()
}
