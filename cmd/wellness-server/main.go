package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/him/wellness/internal/config"
	"github.com/him/wellness/internal/domain/wellness"
	"github.com/him/wellness/internal/platform/auth"
	"github.com/him/wellness/internal/platform/cache"
	"github.com/him/wellness/internal/platform/db"
	"github.com/him/wellness/internal/platform/export"
	"github.com/him/wellness/internal/platform/middleware"
	"github.com/him/wellness/internal/platform/openapi"
	"github.com/him/wellness/internal/platform/reporting"
	"github.com/him/wellness/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "wellness-server",
		Short: "HIM Wellness reporting API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reporting API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func pingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Probe the reporting database and branch schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")
			return withService(branch, func(ctx context.Context, svc *wellness.Service) error {
				out, err := svc.Connection(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().String("branch", "", "Branch schema (defaults to DB_SCHEMA)")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "report <name>",
		Short:     "Run one report and print it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: reportIDs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			branch, _ := cmd.Flags().GetString("branch")

			if format != "json" && format != "xlsx" {
				return fmt.Errorf("--format must be json or xlsx, got %q", format)
			}
			if (start == "") != (end == "") {
				return fmt.Errorf("--start and --end must be given together")
			}
			if reporting.FindReport(args[0]) == nil {
				return fmt.Errorf("unknown report %q", args[0])
			}

			return withService(branch, func(ctx context.Context, svc *wellness.Service) error {
				rng, err := svc.ParseRange(start, end)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}

				if format == "xlsx" {
					wb, err := svc.Export(ctx, args[0], rng)
					if err != nil {
						return err
					}
					return export.WriteWorkbook(w, wb.Sheets...)
				}
				result, err := svc.Report(ctx, args[0], rng)
				if err != nil {
					return err
				}
				return writeJSON(w, result)
			})
		},
	}
	cmd.Flags().String("start", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Range end (YYYY-MM-DD)")
	cmd.Flags().String("format", "json", "Output format: json or xlsx")
	cmd.Flags().String("out", "", "Write to this file instead of stdout")
	cmd.Flags().String("branch", "", "Branch schema (defaults to DB_SCHEMA)")
	return cmd
}

func reportIDs() []string {
	ids := make([]string, len(reporting.Reports))
	for i, r := range reporting.Reports {
		ids[i] = r.ID
	}
	return ids
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// settings maps configuration onto the report rules.
func settings(cfg *config.Config) (wellness.Settings, error) {
	reportLoc, err := cfg.ReportLocation()
	if err != nil {
		return wellness.Settings{}, fmt.Errorf("report timezone: %w", err)
	}
	storeLoc, err := cfg.StoreLocation()
	if err != nil {
		return wellness.Settings{}, fmt.Errorf("store timezone: %w", err)
	}
	fee, err := decimal.NewFromString(cfg.BookingFee)
	if err != nil {
		return wellness.Settings{}, fmt.Errorf("BOOKING_FEE: %w", err)
	}
	return wellness.Settings{
		DefaultSchema:        cfg.DBSchema,
		ReportLoc:            reportLoc,
		StoreLoc:             storeLoc,
		ConsultationCapacity: cfg.ConsultationCapacity,
		TreatmentCapacity:    cfg.TreatmentCapacity,
		BookingFee:           fee,
		ClosingExcludeTerm:   cfg.ClosingExcludeTerm,
		MaxRangeDays:         cfg.MaxRangeDays,
	}, nil
}

// newCache returns the result cache configured by CACHE_TTL and REDIS_URL.
// The returned stop func releases whatever the cache holds open.
func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*cache.Cache, func(), error) {
	if cfg.CacheTTL <= 0 {
		return nil, func() {}, nil
	}

	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("report cache backed by redis")
		return cache.New(r, cfg.CacheTTL, logger).WithLoadTimeout(cfg.RequestTimeout), func() { _ = r.Close() }, nil
	}

	mem := cache.NewMemory()
	sweepCtx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(cfg.CacheTTL)
		defer t.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-t.C:
				if n := mem.Sweep(); n > 0 {
					logger.Debug().Int("evicted", n).Msg("report cache swept")
				}
			}
		}
	}()
	logger.Info().Dur("ttl", cfg.CacheTTL).Msg("report cache in memory")
	return cache.New(mem, cfg.CacheTTL, logger).WithLoadTimeout(cfg.RequestTimeout), cancel, nil
}

// withService wires a one-shot service for the CLI commands.
func withService(branch string, fn func(ctx context.Context, svc *wellness.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        4,
		ApplicationName: "wellness-cli",
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := settings(cfg)
	if err != nil {
		return err
	}
	if branch != "" {
		if !db.ValidSchema(branch) {
			return fmt.Errorf("invalid branch %q", branch)
		}
		ctx = db.WithBranch(ctx, branch)
	}
	svc := wellness.NewService(wellness.NewRepo(pool, cfg.QueryTimeout), st, nil, logger)
	return fn(ctx, svc)
}

func newMetrics(cfg *config.Config) *telemetry.Provider {
	return telemetry.NewProvider(telemetry.Config{
		ServiceName:    "wellness-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
	})
}

// exportRoute streams whole spreadsheets and runs without the request deadline.
const exportRoute = "/api/v1/wellness/:report/export"

// newServer builds the echo instance with the full middleware chain.
func newServer(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger, svc *wellness.Service, metrics *telemetry.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, cfg.IsProduction())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.MetricsMiddleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", db.BranchHeader},
		ExposeHeaders: []string{echo.HeaderContentDisposition, middleware.RequestIDHeader},
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, exportRoute))
	}

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger, 5*time.Second))

	e.GET(telemetry.MetricsPath, metrics.PrometheusHandler())
	openapi.NewGenerator(reporting.Reports, version, "/").RegisterRoutes(e)

	// API
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(db.BranchMiddleware(cfg.DBSchema))
	apiV1.Use(auth.RequireBranch())

	reporting.NewHandler().RegisterRoutes(apiV1)
	wellness.NewHandler(svc, logger, cfg.IsProduction()).
		WithFailureRecorder(metrics).
		RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)

	st, err := settings(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid report settings")
	}

	// Database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ConnectTimeout:  cfg.QueryTimeout,
		MaxConnIdleTime: 5 * time.Minute,
		ApplicationName: "wellness-server",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	results, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up report cache")
	}
	defer closeCache()

	svc := wellness.NewService(wellness.NewRepo(pool, cfg.QueryTimeout), st, results, logger)
	metrics := newMetrics(cfg)
	metrics.GaugeFunc("db_pool_acquired_connections", "Connections currently in use.",
		func() int64 { return int64(pool.Stat().AcquiredConns()) })
	metrics.GaugeFunc("db_pool_idle_connections", "Idle pool connections.",
		func() int64 { return int64(pool.Stat().IdleConns()) })
	metrics.GaugeFunc("db_pool_total_connections", "Open pool connections.",
		func() int64 { return int64(pool.Stat().TotalConns()) })

	e := newServer(cfg, logger, pool, svc, metrics)

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
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
