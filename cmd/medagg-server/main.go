package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medagg/medagg/internal/config"
	"github.com/medagg/medagg/internal/domain/patient"
	"github.com/medagg/medagg/internal/domain/record"
	"github.com/medagg/medagg/internal/domain/sharing"
	"github.com/medagg/medagg/internal/domain/summary"
	"github.com/medagg/medagg/internal/platform/auth"
	"github.com/medagg/medagg/internal/platform/blobstore"
	"github.com/medagg/medagg/internal/platform/db"
	"github.com/medagg/medagg/internal/platform/middleware"
	"github.com/medagg/medagg/internal/platform/narrative"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medagg-server",
		Short: "Patient medical data aggregation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the aggregation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Upload archive
	archive, err := blobstore.NewDiskStore(cfg.UploadsDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadsDir).Msg("failed to open uploads directory")
	}

	// Repositories
	patientRepo := patient.NewRepoPG(pool)
	recordRepo := record.NewRepoPG(pool)
	summaryRepo := summary.NewRepoPG(pool)
	tokenRepo := sharing.NewTokenRepoPG(pool)
	accessLogRepo := sharing.NewAccessLogRepoPG(pool)

	// Services
	patientSvc := patient.NewService(patientRepo)

	catalog := record.Catalog{Hospitals: cfg.Hospitals, Categories: cfg.Categories}
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	}
	recordSvc := record.NewService(patientSvc, recordRepo, summaryRepo, archive, catalog, inTx)

	var narrator summary.Narrator
	if cfg.NarrativeAPIURL != "" {
		narrator = narrative.NewClient(
			cfg.NarrativeAPIURL,
			cfg.NarrativeAPIKey,
			cfg.NarrativeModel,
			time.Duration(cfg.NarrativeTimeoutSeconds)*time.Second,
			logger,
		)
		logger.Info().Str("model", cfg.NarrativeModel).Msg("narrative API configured")
	} else {
		logger.Info().Msg("narrative API not configured, summaries are generated deterministically")
	}
	synthesizer := summary.NewSynthesizer(narrator, logger)
	summarySvc := summary.NewService(patientSvc, recordSvc, summaryRepo, synthesizer)

	sharingSvc := sharing.NewService(
		patientSvc, recordSvc, summaryRepo, tokenRepo, accessLogRepo,
		cfg.TokenTTLHours, logger,
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second))
	e.Use(db.SessionMiddleware(pool))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Patient-side API: authenticated, general rate limit.
	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.ResolvedAuthMode() == "development" {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}
	api.Use(middleware.Audit(logger))

	// Provider-side access: the share token itself is the credential, so
	// the route carries no auth middleware and a much tighter rate limit
	// against token guessing.
	providerAPI := e.Group("/api")
	providerAPI.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
	}))

	// Handlers
	record.NewHandler(recordSvc).RegisterRoutes(api)
	summary.NewHandler(summarySvc).RegisterRoutes(api)
	sharingHandler := sharing.NewHandler(sharingSvc)
	sharingHandler.RegisterRoutes(api)
	sharingHandler.RegisterProviderRoutes(providerAPI)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
