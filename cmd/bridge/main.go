package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alovak/cardflow-bridge/bridge"
	"github.com/alovak/cardflow-bridge/bridge/iso8583"
	"github.com/alovak/cardflow-bridge/internal/sandbox"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := bridge.LoadConfig()
	if err != nil {
		fail("%v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	processor, err := newProcessor(logger, cfg)
	if err != nil {
		fail("%v", err)
	}

	app := bridge.NewApp(logger, cfg, processor)
	if err := app.Start(); err != nil {
		fail("starting bridge: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Shutdown()
}

func newProcessor(logger *slog.Logger, cfg *bridge.Config) (bridge.Processor, error) {
	var loc *time.Location
	if cfg.ExpiryTZ != "" {
		l, err := time.LoadLocation(cfg.ExpiryTZ)
		if err != nil {
			return nil, fmt.Errorf("loading expiry timezone: %w", err)
		}
		loc = l
	}

	switch cfg.Processor {
	case bridge.ProcessorSandbox:
		return sandbox.New(sandbox.WithOTP(cfg.SandboxOTP), sandbox.WithLocation(loc)), nil
	case bridge.ProcessorISO8583:
		return iso8583.NewProcessor(logger, cfg.ISO8583Addr,
			iso8583.WithSendTimeout(cfg.ISO8583SendTimeout),
			iso8583.WithLocation(loc),
		), nil
	default:
		return nil, fmt.Errorf("unsupported processor %q", cfg.Processor)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
