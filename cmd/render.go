package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/ansisql"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/query"
	"github.com/sparkify/sparkify-etl/pkg/redshift"
	"github.com/urfave/cli/v2"
)

type renderedStep struct {
	Step    string   `json:"step"`
	Kind    string   `json:"kind"`
	Queries []string `json:"queries"`
}

// renderStep returns the statements a step would execute. Credentials are replaced by placeholders.
func renderStep(step *pipeline.Step) (*renderedStep, error) {
	rendered := &renderedStep{Step: step.Name, Kind: string(step.Kind), Queries: []string{}}

	switch step.Kind {
	case pipeline.StepKindMarker:
	case pipeline.StepKindCreateTable:
		rendered.Queries = append(rendered.Queries, query.Query{Query: step.Create.Statement}.ToDryRunQuery())
	case pipeline.StepKindStage:
		copyStatement, err := redshift.BuildCopyStatement(step.Stage, redshift.PlaceholderCredentials)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to render step '%s'", step.Name)
		}
		rendered.Queries = append(rendered.Queries, copyStatement)
	case pipeline.StepKindLoadFact, pipeline.StepKindLoadDimension:
		for _, q := range ansisql.LoadQueries(step.Load) {
			rendered.Queries = append(rendered.Queries, q.Query)
		}
	case pipeline.StepKindQualityCheck:
		for _, check := range step.Checks {
			rendered.Queries = append(rendered.Queries, fmt.Sprintf("-- %s: expect result %s %d\n%s",
				check.DisplayName(), check.Comparison, check.Expected, strings.TrimSpace(check.Query)))
		}
	default:
		return nil, errors.Errorf("unknown step kind '%s'", step.Kind)
	}

	return rendered, nil
}

type RenderCommand struct {
	output    string
	highlight bool
	writer    io.Writer
}

func (r *RenderCommand) Run(p *pipeline.Pipeline, stepName string) error {
	steps := p.Steps
	if stepName != "" {
		step := p.GetStep(stepName)
		if step == nil {
			return stepNotFoundError(p, stepName)
		}
		steps = []*pipeline.Step{step}
	}

	rendered := make([]*renderedStep, 0, len(steps))
	for _, step := range steps {
		rs, err := renderStep(step)
		if err != nil {
			return err
		}
		if len(rs.Queries) == 0 && stepName == "" {
			continue
		}
		rendered = append(rendered, rs)
	}

	if r.output == "json" {
		js, err := json.MarshalIndent(rendered, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to render the queries")
		}
		_, err = fmt.Fprintln(r.writer, string(js))
		return err
	}

	for _, rs := range rendered {
		fmt.Fprintf(r.writer, "-- %s (%s)\n", rs.Step, rs.Kind)
		for _, q := range rs.Queries {
			if r.highlight {
				q = highlightCode(q, "sql")
			}
			fmt.Fprintf(r.writer, "%s\n", q)
		}
		fmt.Fprintln(r.writer)
	}

	return nil
}

func Render() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render the SQL every step of the pipeline would execute",
		ArgsUsage: "[path to the pipeline.yml file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "step",
				Usage: "render only the step with the given name",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format (json)",
			},
		},
		Action: func(c *cli.Context) error {
			_, p, err := loadPipeline(c)
			if err != nil {
				errorPrinter.Printf("Failed to load the pipeline: %v\n", err)
				return cli.Exit("", 1)
			}

			r := &RenderCommand{
				output:    c.String("output"),
				highlight: isTerminal(os.Stdout),
				writer:    os.Stdout,
			}

			if err := r.Run(p, c.String("step")); err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func isTerminal(f *os.File) bool {
	o, err := f.Stat()
	if err != nil {
		return false
	}

	return (o.Mode() & os.ModeCharDevice) == os.ModeCharDevice
}

func highlightCode(code string, language string) string {
	b := new(strings.Builder)
	err := quick.Highlight(b, code, language, "terminal16m", "monokai")
	if err != nil {
		return code
	}

	return b.String()
}
