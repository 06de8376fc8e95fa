/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"apodfeed/apod"
	"apodfeed/config"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/urfave/cli/v2"
)

func configureCmd() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "Write a configuration file",
		Description: `Asks for a NASA API key and API host and writes them to the
configuration file. Other settings keep their current or default values.

Leave the key empty to use the shared demo key. Personal keys can be
requested at https://api.nasa.gov.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "Path to configuration file",
				EnvVars: []string{"APODFEED_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			path := ctx.String("config")

			cfg, err := config.LoadConfigOrDefault(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			key, err := prompt.New().Ask("API key:").Input("", input.WithEchoMode(input.EchoNone))
			if err != nil {
				return err
			}

			host, err := prompt.New().Ask("API host:").Input(cfg.Api.Host)
			if err != nil {
				return err
			}

			key = strings.TrimSpace(key)
			if key == "" {
				key = apod.DemoKey
			}
			cfg.Api.Key = key

			if host = strings.TrimSpace(host); host != "" {
				cfg.Api.Host = host
			}

			if err := config.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("could not save config: %w", err)
			}

			fmt.Println("Configuration written to", path)
			return nil
		},
	}
}
