package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/config"
	"github.com/urfave/cli/v2"
)

func configSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}

	schema := r.Reflect(&config.Config{})
	schema.Title = "sparkify configuration"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal the schema")
	}

	return out, nil
}

func ConfigSchema() *cli.Command {
	return &cli.Command{
		Name:  "config-schema",
		Usage: "print the JSON schema of the .sparkify.yml file",
		Action: func(c *cli.Context) error {
			out, err := configSchema()
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			fmt.Println(string(out))
			return nil
		},
	}
}
