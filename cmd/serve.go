/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"apodfeed/feeds"
	"apodfeed/models"
	"apodfeed/pictures"
	"apodfeed/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the picture feed",
		Description: `Starts the apodfeed HTTP server.

Loads the first page of pictures in the background and serves the feed,
picture details and settings as JSON. Feed state changes are pushed to
clients listening on the server sent events endpoint.`,
		Flags: append(apiFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"APODFEED_PORT"},
			},
			&cli.StringFlag{
				Name:    "allow-origins",
				Usage:   "Comma separated list of origins allowed by CORS",
				EnvVars: []string{"APODFEED_ALLOW_ORIGINS"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			feed := feeds.New(pictures.NewFetcher(client, nil), feeds.WithRetry(cfg.Feed.Retry))
			bc := server.NewBroadcaster()
			server.ForwardState(feed, bc)

			app := server.Server(&server.ServerConfig{
				Feed:         feed,
				Broadcaster:  bc,
				AllowOrigins: cfg.Server.AllowOrigins,
				Settings: models.SettingsResponse{
					Title:            "Settings",
					ApiHost:          cfg.Api.Host,
					PersonalKey:      cfg.HasPersonalKey(),
					RequestsPerHour:  cfg.Api.RequestsPerHour,
					RetryCount:       cfg.Feed.Retry,
					ServiceUserAgent: cfg.Api.UserAgent,
				},
			})

			log.WithFields(log.Fields{
				"host":        cfg.Api.Host,
				"personalKey": cfg.HasPersonalKey(),
				"port":        cfg.Server.Port,
			}).Info("Starting apodfeed")

			feedCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			var wg sync.WaitGroup
			wg.Add(1)

			go func() {
				<-c
				log.Info("Gracefully shutting down...")
				cancel()
				bc.Shutdown()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.Errorf("Failed to shut down server: %v", err)
				}
				wg.Done()
			}()

			go func() {
				log.Info("Loading first page of pictures...")
				if err := feed.Activate(feedCtx); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Failed to load first page")
				}
			}()

			if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			wg.Wait()
			log.Info("Done!")
			return nil
		},
	}
}
