/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func showCmd() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the picture of a single day",
		Flags: append(apiFlags(),
			&cli.TimestampFlag{
				Name:     "date",
				Aliases:  []string{"d"},
				Layout:   "2006-01-02",
				Usage:    "Day of the picture, e.g. 2023-07-20",
				Required: true,
			},
		),
		Action: func(ctx *cli.Context) error {
			log.SetOutput(os.Stderr)

			date := ctx.Timestamp("date")
			if date == nil {
				return fmt.Errorf("a date is required")
			}
			if date.After(time.Now()) {
				return fmt.Errorf("no picture for a day in the future: %s", date.Format("2006-01-02"))
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			entry, err := client.GetDate(ctx.Context, *date)
			if err != nil {
				return fmt.Errorf("could not get picture: %w", err)
			}

			printStdout(entry)
			return nil
		},
	}
}
