package cmd

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/config"
	"github.com/sparkify/sparkify-etl/pkg/path"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// initProject writes the default pipeline definition and an empty config file into dir, leaving
// existing files untouched. It returns the files it created.
func initProject(fs afero.Fs, dir string) ([]string, error) {
	created := make([]string, 0, 2)

	definitionPath := filepath.Join(dir, pipeline.DefaultDefinitionFile)
	if !path.FileExists(fs, definitionPath) {
		if err := path.WriteYaml(fs, definitionPath, pipeline.DefaultDefinition()); err != nil {
			return nil, errors.Wrap(err, "failed to write the pipeline definition")
		}
		created = append(created, definitionPath)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	configExisted := path.FileExists(fs, configPath)
	if _, err := config.LoadOrCreate(fs, configPath); err != nil {
		return nil, err
	}
	if !configExisted {
		created = append(created, configPath)
	}

	return created, nil
}

func Init() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "write a default pipeline.yml and .sparkify.yml into the given directory",
		ArgsUsage: "[directory]",
		Action: func(c *cli.Context) error {
			dir := "."
			if c.Args().Present() {
				dir = c.Args().First()
			}

			created, err := initProject(fs, dir)
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			if len(created) == 0 {
				warningPrinter.Println("Nothing to do, the project is already initialized.")
				return nil
			}

			for _, file := range created {
				successPrinter.Printf("Created %s\n", file)
			}
			infoPrinter.Printf("Add the 'redshift' and 'aws' connections to %s before running the pipeline.\n", config.DefaultConfigFile)
			return nil
		},
	}
}
