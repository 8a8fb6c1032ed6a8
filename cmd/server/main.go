package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"study-hub/internal"
	"study-hub/moderation"
	"study-hub/observability"
	"study-hub/repositories"
	"study-hub/runtime"
	"study-hub/runtime/workers"
)

//go:embed wordlists/*.txt
var wordlistFS embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	wordlist, err := moderation.LoadWordlist(wordlistFS, "wordlists")
	if err != nil {
		return fmt.Errorf("wordlist loading failed: %w", err)
	}
	log.Info("Wordlist loaded", "words", len(wordlist.Words), "languages", wordlist.Languages)

	moderator, err := moderation.NewModerator(wordlist.Words, censoredChar)
	if err != nil {
		return fmt.Errorf("moderator build failed: %w", err)
	}

	// 4. Core components
	metrics := observability.NewCoreMetrics()
	messages := repositories.NewMessageRepository(db, log, config.LimitMessages)
	directory := repositories.NewUserDirectory(db)
	registry := runtime.NewMembershipRegistry(log)
	limiter := runtime.NewRateLimiter(runtime.Limits{
		RequestsPerMinute: config.AIRequestsPerMinute,
		RequestsPerDay:    config.AIRequestsPerDay,
		TokensPerDay:      config.AITokensPerDay,
	})
	sinks := runtime.NewSinkRegistry()

	coordinator := runtime.NewCoordinator(log, registry, limiter, directory,
		messages, &moderator, sinks, metrics, config.BufferSize)

	// 5. Supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewBroadcastWorker(log, coordinator.Outbound(), sinks, metrics),
		workers.NewTelemetryWorker(log, config.MetricInterval, metrics),
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Debug server over the message keyspace + live counters
	internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
		stats := metrics.Snapshot()
		return map[string]any{
			"FirstJoins":      stats.FirstJoins,
			"LastLeaves":      stats.LastLeaves,
			"PresenceUpdates": stats.PresenceUpdates,
			"MessagesStored":  stats.MessagesStored,
			"QuotaRejections": stats.QuotaRejections,
			"BroadcastDrops":  stats.BroadcastDrops,
			"EventsDropped":   stats.EventsDropped,
		}
	})
	log.Info("Debug server started", "port", config.DebugPort)

	// 8. Run until a signal arrives
	go func() {
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		sup.Stop()
	}()
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
