package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/state"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// cronLogger routes the cron library's own messages into zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// newPipelineCron registers the pipeline run on the definition's schedule. Ticks that fire while the
// previous run is still going are skipped, and ticks missed while the process was down are never replayed.
func newPipelineCron(logger *zap.SugaredLogger, def *pipeline.Definition, now func() time.Time, job func()) (*cron.Cron, cron.EntryID, error) {
	if def.Catchup {
		return nil, 0, errors.New("catchup is not supported, set 'catchup: false' in the pipeline definition")
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(pipeline.NormalizeSchedule(def.Schedule), func() {
		if !def.StartDate.IsZero() && now().Before(def.StartDate) {
			logger.Infof("skipping the scheduled run, the pipeline starts at %s", def.StartDate.Format(time.RFC3339))
			return
		}

		job()
	})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "invalid schedule '%s'", def.Schedule)
	}

	return c, id, nil
}

func Schedule(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "schedule",
		Usage:     "run the Sparkify pipeline on its schedule until interrupted",
		ArgsUsage: "[path to the pipeline.yml file]",
		Flags: []cli.Flag{
			configFileFlag(),
			environmentFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "number of workers to run the steps in parallel",
				Value: 4,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "the maximum duration of a single run, 0 disables it",
				Value: time.Hour,
			},
			&cli.BoolFlag{
				Name:  "no-state",
				Usage: "do not record the runs in the local run history",
			},
			stateFileFlag(),
		},
		Action: func(c *cli.Context) error {
			logger := makeLogger(*isDebug)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			def, p, err := loadPipeline(c)
			if err != nil {
				errorPrinter.Printf("Failed to load the pipeline: %v\n", err)
				return cli.Exit("", 1)
			}

			cm, manager, err := loadConnections(ctx, c)
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}
			defer manager.Close()

			runner := &pipelineRunner{
				logger:    logger,
				operators: setupOperators(manager),
			}

			if !c.Bool("no-state") {
				store, err := state.Open(ctx, c.String("state-file"))
				if err != nil {
					errorPrinter.Printf("Failed to open the run history: %v\n", err)
					return cli.Exit("", 1)
				}
				defer store.Close()
				runner.recorder = store
			}

			opts := runOptions{
				Workers:     c.Int("workers"),
				Timeout:     c.Duration("timeout"),
				Environment: cm.SelectedEnvironmentName,
			}
			retry := executor.RetryPolicy{Retries: def.Retries, Delay: def.RetryDelay}

			scheduled, id, err := newPipelineCron(logger, def, time.Now, func() {
				infoPrinter.Printf("\nStarting a scheduled run of '%s' at %s\n\n", p.Name, time.Now().UTC().Format(time.RFC3339))
				summary, err := runner.run(ctx, p, retry, opts)
				if err != nil {
					errorPrinter.Println(err.Error())
					return
				}
				printExecutionSummary(summary)
			})
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			scheduled.Start()
			infoPrinter.Printf("Scheduled the pipeline '%s' with '%s', next run at %s\n", p.Name, def.Schedule, scheduled.Entry(id).Next.Format(time.RFC3339))

			<-ctx.Done()
			infoPrinter.Println("Stopping the scheduler...")
			<-scheduled.Stop().Done()

			return nil
		},
	}
}
