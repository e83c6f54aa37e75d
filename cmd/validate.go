package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/sparkify/sparkify-etl/pkg/connection"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/redshift"
	"github.com/sparkify/sparkify-etl/pkg/schema"
	"github.com/urfave/cli/v2"
)

type warehousePinger interface {
	Ping(ctx context.Context) error
	TableExists(ctx context.Context, tableName string) (bool, error)
}

// checkWarehouse pings the warehouse and reports which of the pipeline tables are missing.
func checkWarehouse(ctx context.Context, name string, db warehousePinger) ([]string, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, errors.Wrapf(err, "connection '%s' is not reachable", name)
	}

	missing := make([]string, 0)
	for _, table := range schema.Tables() {
		exists, err := db.TableExists(ctx, table.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to look up table '%s' through connection '%s'", table.Name, name)
		}
		if !exists {
			missing = append(missing, table.Name)
		}
	}

	return missing, nil
}

func validateConnections(ctx context.Context, def *pipeline.Definition, manager *connection.Manager) error {
	p := pool.New().WithMaxGoroutines(4).WithErrors().WithContext(ctx)

	for _, name := range manager.RedshiftConnectionNames() {
		name := name
		db, err := manager.GetRedshiftConnection(name)
		if err != nil {
			return err
		}

		p.Go(func(ctx context.Context) error {
			return pingRedshift(ctx, name, db)
		})
	}

	p.Go(func(ctx context.Context) error {
		if _, err := manager.GetAwsCredentials(ctx, def.Connections.Aws); err != nil {
			return err
		}

		successPrinter.Printf("AWS connection '%s' resolved its credentials\n", def.Connections.Aws)
		return nil
	})

	return p.Wait()
}

func pingRedshift(ctx context.Context, name string, db *redshift.Client) error {
	missing, err := checkWarehouse(ctx, name, db)
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		warningPrinter.Printf("Connection '%s' is reachable, the tables %v will be created on the next run\n", name, missing)
		return nil
	}

	successPrinter.Printf("Connection '%s' is reachable and all tables exist\n", name)
	return nil
}

func Validate() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate the pipeline definition and optionally test the connections",
		ArgsUsage: "[path to the pipeline.yml file]",
		Flags: []cli.Flag{
			configFileFlag(),
			environmentFlag(),
			&cli.BoolFlag{
				Name:  "connections",
				Usage: "also test every Redshift connection and the AWS credentials",
			},
		},
		Action: func(c *cli.Context) error {
			def, p, err := loadPipeline(c)
			if err != nil {
				errorPrinter.Printf("Failed to load the pipeline: %v\n", err)
				return cli.Exit("", 1)
			}

			levels, err := p.Levels()
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			successPrinter.Printf("Pipeline '%s' is valid: %d steps, %d dependencies, %d levels, %d quality checks\n",
				p.Name, len(p.Steps), len(p.Edges()), len(levels), len(def.Checks))

			if !c.Bool("connections") {
				return nil
			}

			cm, manager, err := loadConnections(c.Context, c)
			if err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}
			defer manager.Close()

			if _, err := manager.GetRedshiftConnection(def.Connections.Warehouse); err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			fmt.Printf("Testing the connections of environment '%s'...\n", cm.SelectedEnvironmentName)
			if err := validateConnections(c.Context, def, manager); err != nil {
				errorPrinter.Println(err.Error())
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}
