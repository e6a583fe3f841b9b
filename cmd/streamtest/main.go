// streamtest connects to the trade stream and prints parsed trades to console.
// Usage: go run ./cmd/streamtest --symbols btcusdt,ethusdt
//
// No credentials are needed; the trade stream is public.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/observer"
	"github.com/rickgao/marketfeed/internal/render"
	"github.com/rickgao/marketfeed/internal/router"
)

func main() {
	symbolsFlag := flag.String("symbols", "btcusdt,ethusdt", "comma-separated symbols")
	url := flag.String("url", connection.DefaultURL, "trade stream URL")
	verbose := flag.Bool("verbose", false, "print full trade JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	symbols, err := model.ParseSymbols(strings.Split(*symbolsFlag, ","))
	if err != nil {
		logger.Error("invalid symbols", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	console := render.NewConsole(os.Stdout, render.ColorAuto)
	onTrade := console.Trade
	if *verbose {
		onTrade = func(t model.TradeRecord) {
			data, _ := json.MarshalIndent(t, "", "  ")
			fmt.Printf("[TRADE] %s\n", data)
		}
	}

	obs := observer.NewLogObserver(logger)
	dispatcher := router.NewDispatcher(onTrade, obs, logger)

	cfg := connection.DefaultStreamConfig()
	cfg.Client.URL = *url
	stream := connection.NewStream(cfg, symbols, dispatcher, obs, connection.WithLogger(logger))

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				streamStats := stream.Stats()
				dispStats := dispatcher.Stats()
				logger.Info("stats",
					"state", streamStats.State,
					"connects", streamStats.Connects,
					"reconnects", streamStats.Reconnects,
					"frames", streamStats.Frames,
					"trades", dispStats.TradesEmitted,
					"skipped", dispStats.Skipped,
					"parse_errors", dispStats.ParseErrors,
					"malformed", dispStats.Malformed,
				)
			}
		}
	}()

	console.Banner("Starting WebSocket connection...", symbols)
	logger.Info("streaming started - press Ctrl+C to stop")

	if err := stream.Run(ctx); err != nil {
		logger.Error("stream exited", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
