package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
	"go.uber.org/zap"
)

var (
	colors = []color.Attribute{
		color.FgBlue,
		color.FgMagenta,
		color.FgCyan,
		color.FgWhite,
		color.FgHiMagenta,
		color.FgHiBlue,
		color.FgHiCyan,
	}
	faint = color.New(color.Faint).SprintFunc()
)

const timeFormat = "2006-01-02 15:04:05"

// RetryPolicy controls how many more times a failed step is attempted, and how long to wait in between.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

type Concurrent struct {
	workerCount int
	workers     []*worker
}

func NewConcurrent(
	logger *zap.SugaredLogger,
	operators OperatorMap,
	workerCount int,
	retry RetryPolicy,
) *Concurrent {
	return newConcurrent(logger, operators, workerCount, retry, os.Stdout)
}

func newConcurrent(logger *zap.SugaredLogger, operators OperatorMap, workerCount int, retry RetryPolicy, out io.Writer) *Concurrent {
	if workerCount < 1 {
		workerCount = 1
	}

	executor := &Sequential{
		OperatorMap: operators,
	}

	var printLock sync.Mutex

	workers := make([]*worker, workerCount)
	for i := 0; i < workerCount; i++ {
		workers[i] = &worker{
			id:        fmt.Sprintf("worker-%d", i),
			executor:  executor,
			logger:    logger,
			retry:     retry,
			out:       out,
			printer:   color.New(colors[i%len(colors)]),
			printLock: &printLock,
		}
	}

	return &Concurrent{
		workerCount: workerCount,
		workers:     workers,
	}
}

func (c Concurrent) Start(ctx context.Context, input chan scheduler.TaskInstance, result chan<- *scheduler.TaskExecutionResult) {
	for i := 0; i < c.workerCount; i++ {
		go c.workers[i].run(ctx, input, result)
	}
}

type worker struct {
	id        string
	executor  *Sequential
	logger    *zap.SugaredLogger
	retry     RetryPolicy
	out       io.Writer
	printer   *color.Color
	printLock *sync.Mutex
}

func (w worker) println(format string, args ...interface{}) {
	w.printLock.Lock()
	defer w.printLock.Unlock()

	_, _ = w.printer.Fprintf(w.out, "[%s] "+format+"\n", append([]interface{}{time.Now().Format(timeFormat)}, args...)...)
}

func (w worker) run(ctx context.Context, taskChannel <-chan scheduler.TaskInstance, results chan<- *scheduler.TaskExecutionResult) {
	for task := range taskChannel {
		task.MarkAs(scheduler.Running)
		w.println("Starting: %s", task.GetHumanID())

		start := time.Now()
		printer := &workerWriter{
			w:           w.out,
			step:        task.GetHumanID(),
			sprintfFunc: w.printer.SprintfFunc(),
			printLock:   w.printLock,
		}

		executionCtx := context.WithValue(ctx, KeyPrinter, printer)
		executionCtx = context.WithValue(executionCtx, ContextLogger, w.logger)
		attempts, err := w.runWithRetries(executionCtx, task)

		duration := time.Since(start)
		res := "Finished"
		if err != nil {
			res = "Failed"
		}
		w.println("%s: %s %s", res, task.GetHumanID(), faint(fmt.Sprintf("(%s)", duration.Truncate(time.Millisecond).String())))

		select {
		case results <- &scheduler.TaskExecutionResult{
			Instance:  task,
			Error:     err,
			Attempts:  attempts,
			StartedAt: start,
			Duration:  duration,
		}:
		case <-ctx.Done():
			return
		}
	}
}

func (w worker) runWithRetries(ctx context.Context, task scheduler.TaskInstance) (int, error) {
	attempts := 0
	for {
		attempts++
		err := w.executor.RunSingleTask(ctx, task)
		if err == nil {
			return attempts, nil
		}

		if attempts > w.retry.Retries || ctx.Err() != nil {
			return attempts, err
		}

		w.logger.Debugw("step failed, retrying", "step", task.GetHumanID(), "attempt", attempts, "error", err)
		w.println("Retrying: %s in %s after attempt %d failed: %v", task.GetHumanID(), w.retry.Delay, attempts, err)

		timer := time.NewTimer(w.retry.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, err
		case <-timer.C:
		}
	}
}

type workerWriter struct {
	w           io.Writer
	step        string
	sprintfFunc func(format string, a ...interface{}) string
	printLock   *sync.Mutex
}

func (w *workerWriter) Write(p []byte) (int, error) {
	formatted := w.sprintfFunc("[%s] [%s] %s", time.Now().Format(timeFormat), w.step, string(p))

	w.printLock.Lock()
	defer w.printLock.Unlock()

	n, err := w.w.Write([]byte(formatted))
	if err != nil {
		return n, err
	}
	if n != len(formatted) {
		return n, io.ErrShortWrite
	}
	return len(p), nil
}
