package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/lyzr/agentflow/cmd/agentflow/container"
	"github.com/lyzr/agentflow/cmd/agentflow/middleware"
	"github.com/lyzr/agentflow/cmd/agentflow/routes"
	"github.com/lyzr/agentflow/common/cache"
	"github.com/lyzr/agentflow/common/checkpoint"
	"github.com/lyzr/agentflow/common/config"
	"github.com/lyzr/agentflow/common/db"
	"github.com/lyzr/agentflow/common/events"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/logger"
	redisc "github.com/lyzr/agentflow/common/redis"
	"github.com/lyzr/agentflow/common/server"
	"github.com/lyzr/agentflow/common/tasks"
)

// Events mirrored to Redis land on this pub/sub channel.
const eventChannel = "agentflow:events"

func newServeCmd() *cobra.Command {
	var (
		port        int
		jwtSecret   string
		apiKeys     []string
		rateLimit   int
		noAuth      bool
		redisAddr   string
		databaseURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(port, jwtSecret, apiKeys, rateLimit, noAuth, redisAddr, databaseURL)
		},
	}

	cmd.Flags().IntVar(&port, "port", 3000, "listen port")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "HS256 secret for bearer tokens")
	cmd.Flags().StringArrayVar(&apiKeys, "api-key", nil, "static API key as <key>:<role> (repeatable)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "max requests per second (0 disables)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "disable authentication")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for checkpoints and event fan-out")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL for human task persistence")
	return cmd
}

func serve(port int, jwtSecret string, apiKeys []string, rateLimit int, noAuth bool, redisAddr, databaseURL string) error {
	cfg, err := config.Load("agentflow")
	if err != nil {
		return err
	}
	cfg.Service.Port = port

	log := logger.NewWithOptions(logger.Options{
		Level:      cfg.Service.LogLevel,
		Format:     cfg.Service.LogFormat,
		Timestamps: cfg.Service.LogTimestamps,
	})

	keys, err := parseAPIKeys(apiKeys)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c := container.New(cfg, log)
	c.Defs = cache.NewMemoryCache(log)

	if redisAddr == "" {
		redisAddr = cfg.Checkpoint.RedisAddr
	}
	if redisAddr != "" {
		rc, err := redisc.Connect(ctx, redisAddr, log)
		if err != nil {
			return err
		}
		defer rc.Close()

		c.Checkpoints = checkpoint.NewManager(checkpoint.NewRedisStore(rc.GetUnderlying()), log)

		// Mirror engine lifecycle events onto a Redis channel so external
		// consumers can follow runs without polling.
		c.Bus.Subscribe(ctx, "*", func(ctx context.Context, ev events.Event) {
			raw, err := json.Marshal(ev)
			if err != nil {
				return
			}
			if err := rc.PublishEvent(ctx, eventChannel, string(raw)); err != nil {
				log.Warn("event mirror publish failed", "type", ev.Type, "error", err)
			}
		})
	}

	if databaseURL != "" {
		pool, err := db.New(ctx, databaseURL, db.Options{}, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := tasks.NewPGStore(pool.Pool)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		c.Queue.Mirror(store, log)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	if rateLimit > 0 {
		e.Use(middleware.RateLimit(rateLimit))
	}
	if !noAuth {
		e.Use(middleware.Auth(middleware.AuthConfig{
			JWTSecret: jwtSecret,
			APIKeys:   keys,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/health"
			},
		}))
	}

	e.GET("/health", func(ec echo.Context) error {
		body := map[string]interface{}{"status": "healthy"}
		if c.Defs != nil {
			body["definition_cache"] = c.Defs.Stats()
		}
		return ec.JSON(http.StatusOK, body)
	})

	routes.RegisterWorkflowRoutes(e, c)
	routes.RegisterTaskRoutes(e, c)

	return server.New("agentflow control plane", port, e, log).Start()
}

// parseAPIKeys splits repeated <key>:<role> flags into a lookup map.
func parseAPIKeys(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	keys := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, role, ok := strings.Cut(pair, ":")
		if !ok || key == "" || role == "" {
			return nil, flowerr.Newf(flowerr.KindValidation, "malformed --api-key %q, want <key>:<role>", pair)
		}
		keys[key] = role
	}
	return keys, nil
}
