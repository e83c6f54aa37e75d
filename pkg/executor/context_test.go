package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPrinterFromContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, io.Discard, PrinterFromContext(context.Background()))

	var buf bytes.Buffer
	ctx := context.WithValue(context.Background(), KeyPrinter, &buf)
	assert.Equal(t, &buf, PrinterFromContext(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, LoggerFromContext(context.Background()))

	l := zap.NewNop().Sugar()
	ctx := context.WithValue(context.Background(), ContextLogger, l)
	assert.Equal(t, l, LoggerFromContext(ctx))
}

func TestWorkerWriter_Write(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := &workerWriter{
		w:           &buf,
		step:        "Stage_events",
		sprintfFunc: fmt.Sprintf,
		printLock:   &sync.Mutex{},
	}

	n, err := w.Write([]byte("copying 3 files\n"))
	require.NoError(t, err)
	assert.Equal(t, len("copying 3 files\n"), n)
	assert.Contains(t, buf.String(), "[Stage_events] copying 3 files\n")
}
