package bridge

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alovak/cardflow-bridge/internal/expiry"
	"github.com/alovak/cardflow-bridge/internal/metrics"
	"github.com/alovak/cardflow-bridge/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// connector is implemented by processors that hold a network connection.
type connector interface {
	Connect() error
	io.Closer
}

// App is the main application, it contains all the components of the bridge
// and is responsible for starting and stopping them.
type App struct {
	srv       *http.Server
	wg        *sync.WaitGroup
	Addr      string
	logger    *slog.Logger
	config    *Config
	processor Processor
	metrics   *metrics.PrometheusRecorder
}

func NewApp(logger *slog.Logger, config *Config, processor Processor) *App {
	logger = logger.With(slog.String("app", "bridge"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:        &sync.WaitGroup{},
		logger:    logger,
		config:    config,
		processor: processor,
		metrics:   metrics.NewPrometheusRecorder("bridge"),
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	if a.config.ExpiryTZ != "" {
		if loc, err := time.LoadLocation(a.config.ExpiryTZ); err == nil {
			expiry.SetDefaultExpiryLocation(loc)
		} else {
			a.logger.Info("invalid ExpiryTZ; using default UTC", slog.String("tz", a.config.ExpiryTZ), slog.Any("err", err))
		}
	}

	if c, ok := a.processor.(connector); ok {
		if err := c.Connect(); err != nil {
			return fmt.Errorf("connecting processor: %w", err)
		}
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimw.Recoverer)

	surface := NewQueueSurface()
	orchestrator := NewOrchestrator(a.processor, a.config,
		WithLogger(a.logger),
		WithMetrics(a.metrics),
	)

	api := NewAPI(orchestrator, surface)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle("/metrics", a.metrics.Handler())

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("shutting down http server", "err", err)
	}

	if c, ok := a.processor.(connector); ok {
		if err := c.Close(); err != nil {
			a.logger.Error("closing processor connection", "err", err)
		}
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}
