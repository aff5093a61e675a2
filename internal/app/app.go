package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/zep-us/callbridge/internal/config"
	"github.com/zep-us/callbridge/internal/handler/http/calls"
	"github.com/zep-us/callbridge/internal/handler/http/health"
	httpiface "github.com/zep-us/callbridge/internal/handler/http/interface"
	"github.com/zep-us/callbridge/internal/metrics"
	"github.com/zep-us/callbridge/pkg/call"
	"github.com/zep-us/callbridge/pkg/engine"
	"github.com/zep-us/callbridge/pkg/executor"
	"github.com/zep-us/callbridge/pkg/logger"
	"github.com/zep-us/callbridge/pkg/registry"
)

// App owns the server, the callback executor and the call registry
type App struct {
	config       *config.Config
	echo         *echo.Echo
	readiness    *atomic.Bool
	httpHandlers []httpiface.HttpRouter
	executor     executor.Service
	registry     *registry.Registry
	factory      *call.Factory
	registerer   prometheus.Registerer
	gatherer     prometheus.Gatherer
	cancel       context.CancelFunc
}

// NewApp creates a new App instance with the given configuration
func NewApp(cfg *config.Config) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &App{
		config:     cfg,
		echo:       e,
		readiness:  atomic.NewBool(false),
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
}

// newExecutor picks the callback execution context from executor_mode
func newExecutor(cfg *config.Config) executor.Service {
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	if cfg.ExecutorMode == "pool" {
		logger.Info("Using pool executor (workers=%d, queueSize=%d)", cfg.WorkerPoolSize, cfg.JobQueueSize)
		return executor.NewPool(cfg.WorkerPoolSize, cfg.JobQueueSize, shutdownTimeout)
	}
	logger.Info("Using single dispatch loop executor")
	return executor.NewLoop(shutdownTimeout)
}

// injectDependency wires engine, executor, registry, factory and handlers
func (a *App) injectDependency() error {
	logger.SetLevel(a.config.LogLevel)

	if err := metrics.Register(a.registerer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	a.executor = newExecutor(a.config)
	a.registry = registry.New()

	client := engine.NewClient(engine.Options{
		BaseURL:       a.config.UpstreamBaseURL,
		APIKey:        a.config.UpstreamAPIKey,
		Timeout:       time.Duration(a.config.RequestTimeoutSeconds) * time.Second,
		MaxConcurrent: a.config.MaxConcurrentCalls,
	})

	factory, err := call.NewFactory(client, a.executor, a.registry)
	if err != nil {
		return fmt.Errorf("failed to create call factory: %w", err)
	}
	a.factory = factory

	syncTimeout := time.Duration(a.config.RequestTimeoutSeconds) * time.Second
	if syncTimeout > 0 {
		// leave room for the completion task to reach the executor after the engine timeout fires
		syncTimeout += time.Second
	}

	a.httpHandlers = []httpiface.HttpRouter{
		health.NewHealthHandler(a.readiness, a.stats),
		calls.NewCallsHandler(a.factory, a.registry, syncTimeout),
	}
	return nil
}

func (a *App) stats() (int, int) {
	return a.registry.Len(), a.executor.QueueDepth()
}

// setupServer installs middleware and routes on the Echo instance
func (a *App) setupServer() {
	e := a.echo

	// CORS first so preflights never hit the body limit or readiness gate
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: a.config.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Content-Type", "Authorization", "Accept", "Origin", "User-Agent",
			calls.HeaderTag, calls.HeaderMode, "X-Requested-With",
		},
		AllowCredentials: true,
	}))

	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", a.config.MaxRequestSizeMB)))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Reject new work once draining; probes and metrics stay reachable
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !a.readiness.Load() {
				switch p := c.Request().URL.Path; p {
				case "/healthz", "/readyz", "/statusz", "/metrics":
				default:
					logger.Info("readiness=false: reject new request path=%s", p)
					return c.NoContent(http.StatusServiceUnavailable)
				}
			}
			return next(c)
		}
	})

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metrics.Namespace,
		Registerer: a.registerer,
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.gatherer,
	}))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a.executor != nil {
				metrics.QueueDepthGauge.Set(float64(a.executor.QueueDepth()))
			}
			return next(c)
		}
	})

	for _, handler := range a.httpHandlers {
		handler.SetupRoutes(e)
	}
}

// preProcess is called before server starts
func (a *App) preProcess() {
	logger.Info("Preparing to start server...")
	a.executor.Start()
}

// postProcess is called after shutdown signal is received
func (a *App) postProcess() {
	logger.Info("Shutting down gracefully...")
}

// shutdown runs the drain sequence: stop taking calls, cancel what is in flight,
// let the executor deliver the remaining callbacks, then stop the server
func (a *App) shutdown(ctx context.Context, drain time.Duration) error {
	a.readiness.Store(false)
	logger.Info("readiness=false: start drain window duration=%v", drain)
	time.Sleep(drain)

	if n := a.registry.CancelAll(); n > 0 {
		logger.Info("Canceled %d in-flight calls", n)
	}

	logger.Info("Stopping executor...")
	a.executor.Stop()

	logger.Info("Shutting down Echo server...")
	return a.echo.Shutdown(ctx)
}

// Run starts the Echo server and handles graceful shutdown
func (a *App) Run() error {
	_, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer a.cancel()

	if err := a.injectDependency(); err != nil {
		return err
	}
	a.preProcess()
	a.setupServer()

	go func() {
		addr := fmt.Sprintf(":%d", a.config.ServerPort)
		logger.Info("Starting callbridge server on %s", addr)

		a.readiness.Store(true)

		// http.ErrServerClosed is expected during graceful shutdown
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	logger.Info("Server ready. Waiting for interrupt signal...")
	<-quit

	a.postProcess()

	shutdownTimeout := time.Duration(a.config.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.shutdown(shutdownCtx, time.Duration(a.config.ShutdownDrainSeconds)*time.Second); err != nil {
		logger.Error("Shutdown error: %v", err)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
