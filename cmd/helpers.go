package cmd

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/ansisql"
	"github.com/sparkify/sparkify-etl/pkg/config"
	"github.com/sparkify/sparkify-etl/pkg/connection"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/redshift"
	"github.com/sparkify/sparkify-etl/pkg/s3"
	"github.com/urfave/cli/v2"
)

func configFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config-file",
		EnvVars: []string{"SPARKIFY_CONFIG_FILE"},
		Usage:   "the path to the .sparkify.yml file",
		Value:   config.DefaultConfigFile,
	}
}

func environmentFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "environment",
		Aliases: []string{"e", "env"},
		EnvVars: []string{"SPARKIFY_ENVIRONMENT"},
		Usage:   "the environment to use, defaults to the default environment of the config file",
	}
}

func definitionPath(c *cli.Context) string {
	if c.Args().Present() {
		return c.Args().First()
	}

	return pipeline.DefaultDefinitionFile
}

// loadPipeline reads the definition file, or falls back to the defaults when there is none, and builds the graph.
func loadPipeline(c *cli.Context) (*pipeline.Definition, *pipeline.Pipeline, error) {
	def, err := pipeline.LoadDefinition(fs, definitionPath(c))
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.Build(def)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build the pipeline")
	}

	return def, p, nil
}

func stepNotFoundError(p *pipeline.Pipeline, name string) error {
	return errors.Errorf("step '%s' does not exist in the pipeline '%s', available steps: %s", name, p.Name, strings.Join(p.StepNames(), ", "))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cm, err := config.LoadFromFile(fs, c.String("config-file"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load the config file '%s'", c.String("config-file"))
	}

	if env := c.String("environment"); env != "" {
		if err := cm.SelectEnvironment(env); err != nil {
			return nil, err
		}
	}

	return cm, nil
}

func loadConnections(ctx context.Context, c *cli.Context) (*config.Config, *connection.Manager, error) {
	cm, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	manager, err := connection.NewManagerFromConfig(ctx, cm)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize the connections")
	}

	return cm, manager, nil
}

func setupOperators(manager *connection.Manager) executor.OperatorMap {
	return executor.OperatorMap{
		pipeline.StepKindMarker:        executor.MarkerOperator{},
		pipeline.StepKindCreateTable:   ansisql.NewCreateTableOperator(manager),
		pipeline.StepKindStage:         redshift.NewStageOperator(manager, s3.NewPrefixSensor(manager)),
		pipeline.StepKindLoadFact:      ansisql.NewLoadFactOperator(manager),
		pipeline.StepKindLoadDimension: ansisql.NewLoadDimensionOperator(manager),
		pipeline.StepKindQualityCheck:  ansisql.NewQualityCheckOperator(manager),
	}
}
