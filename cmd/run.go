package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
	"github.com/sparkify/sparkify-etl/pkg/state"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
	"go.uber.org/zap"
)

type runOptions struct {
	Workers     int
	Timeout     time.Duration
	Step        string
	Downstream  bool
	Environment string
}

type runRecorder interface {
	CreateRun(ctx context.Context, pipelineName, environment string) (*state.Run, error)
	RecordStep(ctx context.Context, result state.StepResult) error
	CompleteRun(ctx context.Context, id string, status state.RunStatus, errMsg string) error
}

type runSummary struct {
	RunID     string
	Scheduler *scheduler.Scheduler
	Results   []*scheduler.TaskExecutionResult
	Failed    []*scheduler.TaskExecutionResult
	Duration  time.Duration
	// Interrupted is set when the run was cancelled or timed out before every step completed.
	Interrupted error
}

func (s *runSummary) Succeeded() bool {
	return len(s.Failed) == 0 && s.Interrupted == nil
}

type pipelineRunner struct {
	logger    *zap.SugaredLogger
	operators executor.OperatorMap
	recorder  runRecorder
}

func (r *pipelineRunner) run(ctx context.Context, p *pipeline.Pipeline, retry executor.RetryPolicy, opts runOptions) (*runSummary, error) {
	s := scheduler.NewScheduler(r.logger, p)

	if opts.Step != "" {
		s.MarkAll(scheduler.Skipped)
		if !s.MarkStep(opts.Step, scheduler.Pending, opts.Downstream) {
			return nil, stepNotFoundError(p, opts.Step)
		}
	}

	summary := &runSummary{Scheduler: s}
	if s.InstanceCountByStatus(scheduler.Pending) == 0 {
		return summary, nil
	}

	var run *state.Run
	if r.recorder != nil {
		var err error
		run, err = r.recorder.CreateRun(ctx, p.Name, opts.Environment)
		if err != nil {
			return nil, err
		}
		summary.RunID = run.ID
	}

	exeCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		exeCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ex := executor.NewConcurrent(r.logger, r.operators, opts.Workers, retry)
	ex.Start(exeCtx, s.WorkQueue, s.Results)

	start := time.Now()
	summary.Results = s.Run(exeCtx)
	summary.Duration = time.Since(start)

	for _, res := range summary.Results {
		if res.Error != nil {
			summary.Failed = append(summary.Failed, res)
		}
	}

	if err := exeCtx.Err(); err != nil && s.InstanceCountByStatus(scheduler.Pending)+s.InstanceCountByStatus(scheduler.Queued)+s.InstanceCountByStatus(scheduler.Running) > 0 {
		summary.Interrupted = errors.Wrap(err, "the run was interrupted before all steps completed")
	}

	if run != nil {
		// the run may have been cancelled, the history is still written
		r.record(context.WithoutCancel(ctx), run.ID, summary)
	}

	return summary, nil
}

func (r *pipelineRunner) record(ctx context.Context, runID string, summary *runSummary) {
	resultsByStep := make(map[string]*scheduler.TaskExecutionResult, len(summary.Results))
	for _, res := range summary.Results {
		resultsByStep[res.Instance.GetStep().Name] = res
	}

	for _, instance := range summary.Scheduler.Instances() {
		if instance.GetStatus() == scheduler.Skipped {
			continue
		}

		result := state.StepResultFromTask(runID, instance, resultsByStep[instance.GetStep().Name])
		if err := r.recorder.RecordStep(ctx, result); err != nil {
			r.logger.Warnf("failed to record the result of step '%s': %v", result.Step, err)
		}
	}

	status := state.RunStatusSucceeded
	errMsg := ""
	switch {
	case len(summary.Failed) > 0:
		status = state.RunStatusFailed
		errMsg = summary.Failed[0].Error.Error()
	case summary.Interrupted != nil:
		status = state.RunStatusFailed
		errMsg = summary.Interrupted.Error()
	}

	if err := r.recorder.CompleteRun(ctx, runID, status, errMsg); err != nil {
		r.logger.Warnf("failed to complete the run '%s': %v", runID, err)
	}
}

func Run(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run the Sparkify pipeline once",
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
				Usage: "the maximum duration of the whole run, 0 disables it",
				Value: 2 * time.Hour,
			},
			&cli.StringFlag{
				Name:  "step",
				Usage: "run only the step with the given name",
			},
			&cli.BoolFlag{
				Name:  "downstream",
				Usage: "together with --step, run all the downstream steps as well",
			},
			&cli.BoolFlag{
				Name:  "no-state",
				Usage: "do not record the run in the local run history",
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

			if c.Bool("downstream") && c.String("step") == "" {
				warningPrinter.Println("The --downstream flag has no effect without --step.")
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

			infoPrinter.Printf("Analyzed the pipeline '%s' with %d steps.\n", p.Name, len(p.Steps))
			if step := c.String("step"); step != "" {
				infoPrinter.Printf("Running only the step '%s'\n", step)
				if c.Bool("downstream") {
					infoPrinter.Println("The downstream steps will be executed as well.")
				}
			}
			infoPrinter.Printf("\nStarting the pipeline execution...\n\n")

			summary, err := runner.run(ctx, p, executor.RetryPolicy{Retries: def.Retries, Delay: def.RetryDelay}, runOptions{
				Workers:     c.Int("workers"),
				Timeout:     c.Duration("timeout"),
				Step:        c.String("step"),
				Downstream:  c.Bool("downstream"),
				Environment: cm.SelectedEnvironmentName,
			})
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			if len(summary.Results) == 0 && summary.Interrupted == nil {
				warningPrinter.Println("No steps to run.")
				return nil
			}

			printExecutionSummary(summary)
			if !summary.Succeeded() {
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func printExecutionSummary(summary *runSummary) {
	s := summary.Scheduler
	fmt.Println()

	for _, instance := range s.Instances() {
		var label string
		var labelColor *color.Color

		switch instance.GetStatus() {
		case scheduler.Succeeded:
			label, labelColor = "PASS", color.New(color.FgGreen)
		case scheduler.Failed:
			label, labelColor = "FAIL", color.New(color.FgRed)
		case scheduler.UpstreamFailed:
			label, labelColor = "UPSTREAM FAILED", color.New(color.FgYellow)
		case scheduler.Skipped:
			continue
		default:
			label, labelColor = "NOT RUN", color.New(color.Faint)
		}

		fmt.Printf("%s %s\n", labelColor.Sprint(label), instance.GetStep().Name)
	}

	if len(summary.Failed) > 0 {
		printErrorsInResults(summary.Failed)
	}

	if summary.Interrupted != nil {
		errorPrinter.Printf("\n%v\n", summary.Interrupted)
	}

	runInfo := ""
	if summary.RunID != "" {
		runInfo = faint(fmt.Sprintf(" (run %s)", summary.RunID))
	}

	finished := s.InstanceCountByStatus(scheduler.Succeeded)
	if summary.Succeeded() {
		successPrinter.Printf("\nExecuted %d steps in %s", finished, summary.Duration.Truncate(time.Millisecond))
		fmt.Println(runInfo)
		return
	}

	errorPrinter.Printf("\n%d of %d steps succeeded in %s", finished, finished+s.InstanceCountByStatus(scheduler.Failed)+s.InstanceCountByStatus(scheduler.UpstreamFailed), summary.Duration.Truncate(time.Millisecond))
	fmt.Println(runInfo)
}

func printErrorsInResults(errorsInTaskResults []*scheduler.TaskExecutionResult) {
	fmt.Println()
	tree := treeprint.NewWithRoot(color.New(color.FgRed).Sprintf("%d steps failed", len(errorsInTaskResults)))
	for _, result := range errorsInTaskResults {
		branch := tree.AddBranch(color.New(color.FgYellow).Sprint(result.Instance.GetStep().Name))
		if result.Attempts > 1 {
			branch.AddNode(faint(fmt.Sprintf("failed after %d attempts", result.Attempts)))
		}
		branch.AddNode(color.New(color.FgRed).Sprintf("%s", result.Error))
	}
	fmt.Println()
	fmt.Println(tree.String())
}
