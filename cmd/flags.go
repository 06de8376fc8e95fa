/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"apodfeed/apod"
	"apodfeed/config"
	"apodfeed/models"

	"github.com/urfave/cli/v2"
)

// Flags shared by every command talking to the APOD API
func apiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   config.DefaultPath,
			Usage:   "Path to configuration file",
			EnvVars: []string{"APODFEED_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "APOD API host",
			EnvVars: []string{"APODFEED_API_HOST"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "NASA API key, the shared demo key is used when empty",
			EnvVars: []string{"APODFEED_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "requests-per-hour",
			Usage:   "Client side limit of API requests per hour, 0 disables the limit",
			EnvVars: []string{"APODFEED_REQUESTS_PER_HOUR"},
		},
		&cli.IntFlag{
			Name:    "retry",
			Usage:   "Number of extra attempts for a failing page",
			EnvVars: []string{"APODFEED_RETRY"},
		},
	}
}

// loadConfig reads the config file and applies any flags set on the command line
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfigOrDefault(ctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if ctx.IsSet("api-host") {
		cfg.Api.Host = ctx.String("api-host")
	}
	if ctx.IsSet("api-key") {
		cfg.Api.Key = ctx.String("api-key")
	}
	if ctx.IsSet("requests-per-hour") {
		cfg.Api.RequestsPerHour = ctx.Int("requests-per-hour")
	}
	if ctx.IsSet("retry") {
		cfg.Feed.Retry = ctx.Int("retry")
	}
	if ctx.IsSet("port") {
		cfg.Server.Port = ctx.Int("port")
	}
	if ctx.IsSet("allow-origins") {
		cfg.Server.AllowOrigins = ctx.String("allow-origins")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newClient(cfg *config.TomlConfig) (*apod.Client, error) {
	timeout, err := cfg.ApiTimeout()
	if err != nil {
		return nil, err
	}

	return apod.NewClient(apod.Config{
		Host:            cfg.Api.Host,
		ApiKey:          cfg.Api.Key,
		Timeout:         timeout,
		RequestsPerHour: cfg.Api.RequestsPerHour,
		UserAgent:       cfg.Api.UserAgent,
	}), nil
}

func printStdout(entry *models.Entry) {
	// Print as single JSON string on a single line
	entryJson, err := json.Marshal(entry)
	if err == nil {
		fmt.Println(string(entryJson))
	}
}
