/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"apodfeed/feeds"
	"apodfeed/pictures"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the picture feed to the command line",
		Description: `Loads the given number of feed pages and prints every picture,
newest first.

Returns each picture as a JSON object on a single line. Use a tool like jq to
process the output.

Prints all other log messages to stderr.`,
		Flags: append(apiFlags(),
			&cli.IntFlag{
				Name:    "pages",
				Aliases: []string{"n"},
				Value:   1,
				Usage:   "Number of pages to load, each page covers about a month",
			},
		),
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			pages := ctx.Int("pages")
			if pages < 1 {
				return fmt.Errorf("invalid number of pages: %d", pages)
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			feed := feeds.New(pictures.NewFetcher(client, nil), feeds.WithRetry(cfg.Feed.Retry))
			if err := feed.Activate(ctx.Context); err != nil {
				return err
			}

			for i := 1; i < pages; i++ {
				if feed.State().Exhausted {
					log.Info("No more pictures")
					break
				}
				if err := feed.LoadMore(ctx.Context); err != nil {
					return err
				}
			}

			for _, entry := range feed.State().Entries {
				printStdout(&entry)
			}

			return nil
		},
	}
}
