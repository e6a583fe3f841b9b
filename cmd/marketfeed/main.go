// marketfeed polls analysis snapshots and streams live trades for a set of
// symbols, printing both to the console.
// Usage: go run ./cmd/marketfeed --config configs/marketfeed.example.yaml
//
// Without --config, defaults are used and --symbols is required.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/marketfeed/internal/api"
	"github.com/rickgao/marketfeed/internal/config"
	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/metrics"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/observer"
	"github.com/rickgao/marketfeed/internal/poller"
	"github.com/rickgao/marketfeed/internal/render"
	"github.com/rickgao/marketfeed/internal/router"
	"github.com/rickgao/marketfeed/internal/server"
	"github.com/rickgao/marketfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, overrides feed.symbols")
	once := flag.Bool("once", false, "print a single snapshot batch and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, *symbolsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting marketfeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Validated above; cannot fail.
	symbols, _ := cfg.Symbols()
	interval, _ := model.ParseInterval(cfg.Snapshot.Interval)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New()
	obs := observer.Multi{observer.NewLogObserver(logger), m}
	console := render.NewConsole(os.Stdout, render.ColorMode(cfg.Render.Color), render.WithOrder(symbols))

	// Snapshot pipeline
	apiClient := api.NewClient(
		cfg.Snapshot.URL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Snapshot.Timeout),
		api.WithRetries(cfg.Snapshot.MaxRetries, time.Second),
		api.WithUserAgent(version.UserAgent()),
	)

	sources := make([]poller.Source, len(symbols))
	for i, sym := range symbols {
		sources[i] = api.NewSnapshotClient(apiClient, api.AnalysisRequest{
			Symbol:   sym,
			Exchange: cfg.Snapshot.Exchange,
			Screener: cfg.Snapshot.Screener,
			Interval: interval,
		})
	}

	snapshotPoller := poller.New(poller.Config{
		Interval:     cfg.Snapshot.PollInterval,
		ErrorBackoff: cfg.Snapshot.ErrorBackoff,
		Concurrency:  cfg.Snapshot.Concurrency,
		Timeout:      cfg.Snapshot.Timeout,
	}, sources, obs, poller.WithLogger(logger), poller.WithRecorder(m))

	if *once {
		batch, err := snapshotPoller.PollOnce(ctx)
		if err != nil {
			logger.Error("poll failed", "error", err)
			os.Exit(1)
		}
		console.Batch(batch)
		if len(batch) < len(symbols) {
			os.Exit(2)
		}
		return
	}

	// Trade pipeline
	dispatcher := router.NewDispatcher(func(t model.TradeRecord) {
		m.ObserveTrade(t)
		console.Trade(t)
	}, obs, logger)

	stream := connection.NewStream(connection.StreamConfig{
		Client: connection.ClientConfig{
			URL:              cfg.Stream.URL,
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			PingInterval:     cfg.Stream.PingInterval,
			PingTimeout:      cfg.Stream.PingTimeout,
			WriteTimeout:     cfg.Stream.WriteTimeout,
			BufferSize:       cfg.Stream.BufferSize,
		},
		ReconnectBaseWait: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxWait:  cfg.Stream.ReconnectMaxDelay,
	}, symbols, dispatcher, obs,
		connection.WithLogger(logger),
		connection.WithStateHook(m.ObserveState),
	)

	// Health, metrics and status
	var httpServer *server.Server
	if cfg.Server.Enabled {
		httpServer = server.New(server.Config{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, server.Deps{
			Stream:     stream,
			Dispatcher: dispatcher,
			Poller:     snapshotPoller,
			Metrics:    m.Handler(),
		}, logger)

		if err := httpServer.Start(ctx); err != nil {
			logger.Error("failed to start http server", "error", err)
			os.Exit(1)
		}
	}

	console.Banner("Starting market data stream...", symbols)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return snapshotPoller.Run(gctx, console.Batch)
	})
	g.Go(func() error {
		return stream.Run(gctx)
	})

	logger.Info("marketfeed running",
		"symbols", len(symbols),
		"interval", interval,
		"poll_interval", cfg.Snapshot.PollInterval,
	)

	if err := g.Wait(); err != nil {
		logger.Error("pipeline exited", "error", err)
	}

	logger.Info("shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Stop(shutdownCtx)
	}

	stats := dispatcher.Stats()
	logger.Info("marketfeed stopped",
		"trades", stats.TradesEmitted,
		"parse_errors", stats.ParseErrors,
		"last_cycle", snapshotPoller.LastCycle().ID,
	)
}

// loadConfig reads path, or starts from defaults when path is empty.
// A non-empty symbols list replaces feed.symbols.
func loadConfig(path, symbols string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		var err error
		if cfg, err = config.LoadWithDefaults(path); err != nil {
			return nil, err
		}
	}

	if symbols != "" {
		cfg.Feed.Symbols = strings.Split(symbols, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
