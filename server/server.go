package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"apodfeed/feeds"
	"apodfeed/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const dateLayout = "2006-01-02"

// FeedService is the part of feeds.Feed the HTTP layer needs
type FeedService interface {
	State() feeds.State
	LoadMore(ctx context.Context) error
	Refresh(ctx context.Context) error
	Entry(date string) (models.Entry, bool)
}

type ServerConfig struct {

	// The feed to render
	Feed FeedService

	// Broadcast channels to pass feed state to SSE clients
	Broadcaster *Broadcaster

	// Shown by the settings view
	Settings models.SettingsResponse

	// Comma separated list of origins allowed by CORS
	AllowOrigins string

	// How long detail responses are cached
	CacheExpiration time.Duration

	// Interval between SSE keep-alive pings
	PingInterval time.Duration
}

// Returns a fiber.App instance to be used as an HTTP server for the picture feed
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster
	if bc == nil {
		bc = NewBroadcaster()
	}

	allowOrigins := config.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}

	expiration := config.CacheExpiration
	if expiration <= 0 {
		expiration = time.Hour
	}

	pingInterval := config.PingInterval
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               "apodfeed",
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Cache-Control",
	}))

	// Entries never change once fetched, so their detail views can be cached
	app.Use(cache.New(cache.Config{
		Expiration: expiration,
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}

			date, ok := strings.CutPrefix(c.Path(), "/pictures/")
			if !ok || date == "" || strings.Contains(date, "/") || date == "sse" {
				return true
			}

			// Unknown dates may show up after the next page arrives
			_, found := config.Feed.Entry(date)
			return !found
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Path()
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/pictures", func(c *fiber.Ctx) error {
		return c.JSON(config.Feed.State().Response())
	})

	app.Post("/pictures/more", func(c *fiber.Ctx) error {
		if err := config.Feed.LoadMore(c.UserContext()); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error loading more pictures")

			return c.Status(fiber.StatusBadGateway).JSON(config.Feed.State().Response())
		}
		return c.JSON(config.Feed.State().Response())
	})

	app.Post("/pictures/refresh", func(c *fiber.Ctx) error {
		if err := config.Feed.Refresh(c.UserContext()); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error refreshing pictures")

			return c.Status(fiber.StatusBadGateway).JSON(config.Feed.State().Response())
		}
		return c.JSON(config.Feed.State().Response())
	})

	app.Delete("/pictures/sse", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		bc.RemoveClient(key)
		return c.Status(fiber.StatusOK).SendString("OK")
	})

	app.Get("/pictures/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		stateChannel := make(chan models.FeedResponse, 10)
		initial := config.Feed.State().Response()

		bc.AddClient(key, stateChannel)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer bc.RemoveClient(key)

			ping := time.NewTicker(pingInterval)
			defer ping.Stop()

			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := writeState(w, initial); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-ping.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case state, ok := <-stateChannel:
					if !ok {
						log.Infof("Feed channel closed for client %s", key)
						return
					}
					if err := writeState(w, state); err != nil {
						log.Warnf("Failed to send feed event to client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	app.Get("/pictures/:date", func(c *fiber.Ctx) error {
		date := c.Params("date")
		if _, err := time.Parse(dateLayout, date); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid date, expected YYYY-MM-DD")
		}

		entry, ok := config.Feed.Entry(date)
		if !ok {
			return c.Status(fiber.StatusNotFound).SendString("Picture not found")
		}

		return c.JSON(entry)
	})

	// Placeholder settings view
	app.Get("/settings", func(c *fiber.Ctx) error {
		return c.JSON(config.Settings)
	})

	return app
}

// ForwardState wires feed changes into the broadcaster
func ForwardState(feed interface{ Subscribe(func(feeds.State)) }, bc *Broadcaster) {
	feed.Subscribe(func(state feeds.State) {
		bc.Broadcast(state.Response())
	})
}

func writeState(w *bufio.Writer, state models.FeedResponse) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error marshalling feed state: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: feed\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
