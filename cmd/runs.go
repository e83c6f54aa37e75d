package cmd

import (
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sparkify/sparkify-etl/pkg/state"
	"github.com/urfave/cli/v2"
)

func stateFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "state-file",
		EnvVars: []string{"SPARKIFY_STATE_FILE"},
		Usage:   "the path to the SQLite file that keeps the run history",
		Value:   state.DefaultStateFile,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.UTC().Format(time.RFC3339)
}

func printRuns(w io.Writer, runs []state.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Pipeline", "Environment", "Status", "Started", "Duration", "Error"})
	for _, run := range runs {
		run := run
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.Duration().Truncate(time.Second).String()
		}

		t.AppendRow(table.Row{run.ID, run.Pipeline, run.Environment, run.Status, formatTime(&run.StartedAt), duration, deref(run.Error)})
	}
	t.Render()
}

func printStepResults(w io.Writer, results []state.StepResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Step", "Status", "Attempts", "Started", "Duration", "Error"})
	for _, res := range results {
		duration := (time.Duration(res.DurationMs) * time.Millisecond).String()
		t.AppendRow(table.Row{res.Step, res.Status, res.Attempts, formatTime(res.StartedAt), duration, deref(res.Error)})
	}
	t.Render()
}

func Runs() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "list the recent pipeline runs, or the steps of a single run",
		Flags: []cli.Flag{
			stateFileFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "the number of runs to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "show the step results of the run with the given ID",
			},
		},
		Action: func(c *cli.Context) error {
			store, err := state.Open(c.Context, c.String("state-file"))
			if err != nil {
				errorPrinter.Printf("Failed to open the run history: %v\n", err)
				return cli.Exit("", 1)
			}
			defer store.Close()

			if runID := c.String("run"); runID != "" {
				run, err := store.GetRun(c.Context, runID)
				if err != nil {
					errorPrinter.Println(err.Error())
					return cli.Exit("", 1)
				}

				results, err := store.GetStepResults(c.Context, run.ID)
				if err != nil {
					errorPrinter.Println(err.Error())
					return cli.Exit("", 1)
				}

				printRuns(os.Stdout, []state.Run{*run})
				printStepResults(os.Stdout, results)
				return nil
			}

			runs, err := store.ListRuns(c.Context, c.Int("limit"))
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			if len(runs) == 0 {
				warningPrinter.Println("No runs recorded yet.")
				return nil
			}

			printRuns(os.Stdout, runs)
			return nil
		},
	}
}
