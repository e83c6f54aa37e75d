package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

func printGraph(w io.Writer, p *pipeline.Pipeline) error {
	levels, err := p.Levels()
	if err != nil {
		return err
	}

	tree := treeprint.NewWithRoot(color.New(color.Bold).Sprint(p.Name))
	for _, step := range p.Steps {
		branch := tree.AddBranch(fmt.Sprintf("%s %s", step.Name, faint("("+string(step.Kind)+")")))
		for _, upstream := range step.Upstreams {
			branch.AddNode(faint("after ") + upstream)
		}
	}
	fmt.Fprintln(w, tree.String())

	fmt.Fprintln(w, "Execution levels:")
	for i, level := range levels {
		fmt.Fprintf(w, "  %d. %s\n", i+1, strings.Join(level, ", "))
	}

	return nil
}

func Graph() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Usage:     "print the dependency graph of the pipeline",
		ArgsUsage: "[path to the pipeline.yml file]",
		Action: func(c *cli.Context) error {
			_, p, err := loadPipeline(c)
			if err != nil {
				errorPrinter.Printf("Failed to load the pipeline: %v\n", err)
				return cli.Exit("", 1)
			}

			if err := printGraph(os.Stdout, p); err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}
