/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "apodfeed",
		Usage: "A feed of NASA's Astronomy Picture of the Day",
		Description: `A paginated feed of NASA's Astronomy Picture of the Day.

		Apodfeed fetches the daily pictures from the APOD API in windows of
		about a month, walking backward in time from today. The pictures are
		sorted newest first and can be browsed over an HTTP API or printed
		to the command line.

		Flags can generally be set via environment variables, e.g.:

		--api-key => APODFEED_API_KEY=my-key
		--port => APODFEED_PORT=8080
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"APODFEED_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			listCmd(),
			showCmd(),
			configureCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
