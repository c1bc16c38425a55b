package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RoyFahel/cloud-project/internal/config"
	"github.com/RoyFahel/cloud-project/internal/entity"
	"github.com/RoyFahel/cloud-project/internal/platform/db"
	"github.com/RoyFahel/cloud-project/internal/platform/metrics"
	"github.com/RoyFahel/cloud-project/internal/platform/middleware"
	"github.com/RoyFahel/cloud-project/internal/seed"
	"github.com/RoyFahel/cloud-project/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharmax-server",
		Short: "REST backend for the pharmacy and commerce domains",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents table and unique indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.EnsureSchema(ctx, pool, entity.UniqueIndexes(entity.Schemas())); err != nil {
				return err
			}
			fmt.Println("schema is up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the starter maladies, medicaments, categories, and products",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for seed")
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			indexes := entity.UniqueIndexes(entity.Schemas())
			if err := db.EnsureSchema(ctx, pool, indexes); err != nil {
				return err
			}

			services, _ := buildServices(store.NewPostgres(pool, indexes...), logger, nil)
			return seed.Run(ctx, services, logger)
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

// buildBackend connects to Postgres when configured, falling back to the
// in-memory store so the API keeps serving when the database is missing
// or unreachable at boot. The health endpoints report which mode the
// server is in.
func buildBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, *pgxpool.Pool) {
	indexes := entity.UniqueIndexes(entity.Schemas())

	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store; data will not survive restarts")
		return store.NewMemory(indexes...), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Warn().Err(err).Msg("database unreachable, continuing on in-memory store")
		return store.NewMemory(indexes...), nil
	}

	if err := db.EnsureSchema(ctx, pool, indexes); err != nil {
		logger.Warn().Err(err).Msg("schema setup failed, continuing on in-memory store")
		pool.Close()
		return store.NewMemory(indexes...), nil
	}

	logger.Info().Msg("connected to database")
	return store.NewPostgres(pool, indexes...), pool
}

// buildServices instantiates the generic service and handler for every
// schema in the entity table.
func buildServices(st store.Store, logger zerolog.Logger, m *metrics.Metrics) (seed.Services, []*entity.Handler) {
	resolver := entity.NewResolver(st)
	validator := entity.NewValidator(st)

	services := seed.Services{}
	handlers := make([]*entity.Handler, 0)
	for _, schema := range entity.Schemas() {
		svc := entity.NewService(schema, st, resolver, validator)
		services[schema.Name] = svc
		handlers = append(handlers, entity.NewHandler(svc, logger, m))
	}
	return services, handlers
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	st, pool := buildBackend(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	m := metrics.New()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept"},
		AllowCredentials: true,
	}))

	registerRoutes(e, st, pool, cfg, logger, m)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func registerRoutes(e *echo.Echo, st store.Store, pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) {
	_, handlers := buildServices(st, logger, m)

	api := e.Group("/api")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	endpoints := []string{"/health", "/health/db", "/metrics"}
	for _, schema := range entity.Schemas() {
		endpoints = append(endpoints, "/api/"+schema.Plural)
	}

	// Process-alive check, independent of store connectivity.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "OK",
			"message":     "PharmaX API Server is running",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Env,
		})
	})

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "OK",
			"message":     "PharmaX API Server is running",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Env,
			"endpoints":   endpoints,
		})
	})

	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]any{
			"error":           "Not Found",
			"message":         fmt.Sprintf("Route %s not found", c.Request().URL.Path),
			"availableRoutes": endpoints,
		})
	})
}
