// Command edgegate runs the request admission gate in front of the
// dashboard application: session verification, site lock, and API rate
// limiting, decided once per inbound request.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dashware/edgegate/internal/config"
	"github.com/dashware/edgegate/internal/gate"
	"github.com/dashware/edgegate/internal/middleware"
	"github.com/dashware/edgegate/internal/observability"
	"github.com/dashware/edgegate/internal/ratelimit"
	"github.com/dashware/edgegate/internal/session"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("edgegate %s\n", version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "edgegate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	logger.Info("starting edgegate",
		observability.String("version", version),
		observability.Int("port", cfg.HTTPPort),
		observability.String("rate_limit_store", cfg.EffectiveStore()),
		observability.Bool("session_secret_configured", cfg.SessionSecret != ""),
	)

	verifier := buildVerifier(cfg, logger)
	flags, closeFlags, err := buildFlagSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFlags()

	limiter, err := buildLimiter(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	defer func() {
		if closer, ok := limiter.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}()

	g := gate.New(gate.Options{
		Verifier: verifier,
		Flags:    flags,
		Limiter:  limiter,
		Logger:   logger,
	})

	router := buildRouter(cfg, g, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", observability.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildVerifier wires the session verifier. A missing secret is a
// configuration error: the misconfigured verifier resolves no identity,
// which pushes every protected route to the login redirect instead of
// silently letting requests through.
func buildVerifier(cfg *config.Config, logger observability.Logger) session.Verifier {
	if cfg.SessionSecret == "" {
		logger.Error("EDGEGATE_SESSION_SECRET is not set, protected routes will always redirect to login")
		return session.NewMisconfiguredVerifier(logger)
	}

	verifier, err := session.NewHMACVerifier(cfg.SessionSecret, cfg.SessionCookie,
		session.WithVerifierLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create session verifier", observability.Error(err))
		return session.NewMisconfiguredVerifier(logger)
	}
	return verifier
}

// buildFlagSource selects where the site-lock flag is read from: a
// watched YAML file when configured, the environment otherwise. Both
// re-evaluate per request so lock changes need no restart.
func buildFlagSource(cfg *config.Config, logger observability.Logger) (config.FlagSource, func(), error) {
	if cfg.FlagsFile == "" {
		return config.EnvFlags{}, func() {}, nil
	}

	fileFlags, err := config.NewFileFlags(cfg.FlagsFile,
		config.Flags{SiteLocked: cfg.SiteLocked},
		config.WithFlagsLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch flags file: %w", err)
	}
	return fileFlags, func() { _ = fileFlags.Close() }, nil
}

// buildLimiter creates the rate limiter from configuration. When no
// store is configured the limiter is a noop and every request passes.
func buildLimiter(cfg *config.Config, logger observability.Logger) (ratelimit.Limiter, error) {
	factoryConfig := ratelimit.DefaultFactoryConfig()
	factoryConfig.Requests = cfg.RateLimitRequests
	factoryConfig.Window = cfg.RateLimitWindow
	factoryConfig.StoreType = cfg.EffectiveStore()
	factoryConfig.RedisAddress = cfg.RedisAddress
	factoryConfig.RedisPassword = cfg.RedisToken
	factoryConfig.RedisDB = cfg.RedisDB
	factoryConfig.RedisPrefix = cfg.RedisPrefix
	factoryConfig.Logger = observability.Underlying(logger)

	return ratelimit.NewLimiter(factoryConfig)
}

// buildRouter assembles the middleware chain and the application routes.
// Every route sits behind the gate; the stub handlers stand in for the
// dashboard application the gate fronts.
func buildRouter(cfg *config.Config, g *gate.Gate, logger observability.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.ClientIP(middleware.NewClientIPExtractor(cfg.TrustedProxies)))
	router.Use(middleware.AccessLog(logger))

	if cfg.MetricsEnabled {
		router.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.Use(gate.Middleware(g))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "home"})
	})
	router.GET("/waitlist", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "waitlist"})
	})
	router.GET("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"page":        "login",
			"callbackUrl": c.Query("callbackUrl"),
		})
	})
	// Exact routes exist alongside the catch-alls so bare /dashboard and
	// /api are answered by the gate directly instead of taking a
	// trailing-slash redirect hop through the router first.
	dashboard := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "dashboard"})
	}
	router.GET("/dashboard", dashboard)
	router.GET("/dashboard/*rest", dashboard)

	api := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "api"})
	}
	router.GET("/api", api)
	router.GET("/api/*rest", api)

	return router
}
