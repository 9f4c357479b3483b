package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/helpdeskhq/insight/internal/api"
	"github.com/helpdeskhq/insight/internal/common"
	"github.com/helpdeskhq/insight/internal/feed"
	"github.com/helpdeskhq/insight/internal/freshness"
	"github.com/helpdeskhq/insight/internal/llm"
	"github.com/helpdeskhq/insight/internal/search"
	"github.com/helpdeskhq/insight/internal/store"
	"github.com/helpdeskhq/insight/internal/vector"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("insight: .env file not loaded", "error", err)
	} else {
		logger.Info("insight: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	dbPath := flag.String("db", defaultDBPath(), "path to the ticketing database")
	statePath := flag.String("state", defaultStatePath(), "path to the freshness state file")
	pollInterval := flag.String("poll-interval", "15s", "interval between change-feed polls")
	syncSchedule := flag.String("sync-schedule", "@every 5m", "cron schedule for background reconciliation")
	staleAfter := flag.String("stale-after", "", "re-validation window for the freshness tracker (e.g. 5m)")
	flag.Parse()

	logger.Info("insight: startup initiated", "addr", *addr, "db", *dbPath)

	ticketStore, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("insight: ticket store initialization failed", "error", err)
		fmt.Println("ticket store error:", err)
		os.Exit(1)
	}
	defer ticketStore.Close()

	index, err := vector.NewFromEnv(ctx)
	if err != nil {
		logger.Error("insight: vector index configuration failed", "error", err)
		fmt.Println("vector index error:", err)
		os.Exit(1)
	}
	defer index.Close()
	if index.Available() {
		logger.Info("insight: vector index available", "collection", index.Collection())
	} else {
		logger.Warn("insight: vector index unreachable", "collection", index.Collection())
	}

	provider := llm.NewProvider()
	logger.Info("insight: llm provider ready", "provider", provider.Name())

	trackerOpts := []freshness.Option{freshness.WithStatePath(*statePath)}
	if trimmed := strings.TrimSpace(*staleAfter); trimmed != "" {
		dur, err := time.ParseDuration(trimmed)
		if err != nil {
			logger.Error("insight: invalid stale-after window", "value", trimmed, "error", err)
			fmt.Println("stale-after error:", err)
			os.Exit(1)
		}
		trackerOpts = append(trackerOpts, freshness.WithStaleAfter(dur))
	}
	tracker := freshness.NewTracker(trackerOpts...)

	interval, err := time.ParseDuration(strings.TrimSpace(*pollInterval))
	if err != nil {
		logger.Error("insight: invalid poll interval", "value", *pollInterval, "error", err)
		fmt.Println("poll interval error:", err)
		os.Exit(1)
	}
	watcher := feed.NewWatcher(ticketStore, interval)
	unsubscribe := watcher.Subscribe(tracker.Invalidate)
	defer unsubscribe()
	watcher.Start(ctx)
	defer watcher.Close()

	syncer := search.NewSyncer(ticketStore, index, provider, tracker)
	engine := search.NewEngine(
		search.NewAnalyzer(provider),
		search.NewRetriever(provider, index),
		syncer,
		search.NewProcessor(ticketStore),
	)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(*syncSchedule, func() {
		if _, err := syncer.SyncAll(ctx); err != nil {
			logger.Warn("insight: background sync failed", "error", err)
		}
	}); err != nil {
		logger.Error("insight: invalid sync schedule", "value", *syncSchedule, "error", err)
		fmt.Println("sync schedule error:", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server, err := api.NewServer(engine, syncer)
	if err != nil {
		logger.Error("insight: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("insight: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("insight: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func defaultDBPath() string {
	return filepath.Join("data", "tickets.db")
}

func defaultStatePath() string {
	return filepath.Join("data", "freshness.json")
}
