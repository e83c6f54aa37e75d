package main

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sparkify/sparkify-etl/cmd"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = ""
)

func main() {
	isDebug := false
	color.NoColor = false

	versionCommand := cmd.VersionCmd(commit)

	cli.VersionPrinter = func(cCtx *cli.Context) {
		err := versionCommand.Action(cCtx)
		if err != nil {
			panic(err)
		}
	}

	app := &cli.App{
		Name:     "sparkify",
		Version:  version,
		Usage:    "Load the Sparkify event and song data from S3 into a Redshift star schema",
		Compiled: time.Now(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "show debug information",
				Destination: &isDebug,
			},
		},
		Commands: []*cli.Command{
			cmd.Init(),
			cmd.Run(&isDebug),
			cmd.Schedule(&isDebug),
			cmd.Render(),
			cmd.Graph(),
			cmd.Validate(),
			cmd.Runs(),
			cmd.ConfigSchema(),
			versionCommand,
		},
	}

	_ = app.Run(os.Args)
}
