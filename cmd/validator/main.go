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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/icdachi/validator/internal/config"
	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/validation"
	"github.com/icdachi/validator/internal/domain/verdictlog"
	"github.com/icdachi/validator/internal/platform/auth"
	"github.com/icdachi/validator/internal/platform/db"
	"github.com/icdachi/validator/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "validator",
		Short:        "ICD-10-AM / ACHI code pair validation service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(validateCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the validation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateOracle(); err != nil {
		return err
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests without a token run as admin; do not use in production")
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.close()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to store")

	pipeline, svc, closePipeline, err := newPipeline(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer closePipeline()

	e := newServer(cfg, logger, st, pipeline, svc)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("model", cfg.OracleModel).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with middleware and every route.
func newServer(cfg *config.Config, logger zerolog.Logger, st *stores, pipeline *validation.Pipeline, svc *codes.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(st.pinger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg), middleware.RequestTimeout(cfg.RequestTimeout))
	codes.NewHandler(svc).RegisterRoutes(apiV1)
	validation.NewHandler(pipeline).RegisterRoutes(apiV1)
	verdictlog.NewHandler(st.verdicts).RegisterRoutes(apiV1)

	return e
}
