/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points visualiser server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the zap logger
  3. Initialize SQLite card catalog
  4. Seed built-in cards, then the optional YAML catalog
  5. Create API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path for the card catalog (default: cards.db)
              Use ":memory:" for an in-memory database
  -cards      YAML card catalog to load on startup (optional)
  -log-level  debug, info, warn or error (default: info)
  -dev        Human-readable console logs instead of JSON

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and extra cards
  ./server -db="./data/cards.db" -cards="./cards.yaml"

  # Run with in-memory database and console logs
  ./server -db=":memory:" -dev -log-level=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Card catalog
*/
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
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flagpoonage/points-viz/api"
	"github.com/flagpoonage/points-viz/factory"
	"github.com/flagpoonage/points-viz/presets"
	"github.com/flagpoonage/points-viz/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "cards.db", "SQLite database path")
	cardsPath := flag.String("cards", "", "YAML card catalog to load on startup")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	dev := flag.Bool("dev", false, "human-readable console logging")
	flag.Parse()

	logger, err := newLogger(*logLevel, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logger configuration: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(logger, *port, *dbPath, *cardsPath); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func run(logger *zap.Logger, port int, dbPath, cardsPath string) error {
	// Initialize store
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := presets.Seed(ctx, store); err != nil {
		return fmt.Errorf("seeding built-in cards: %w", err)
	}
	if cardsPath != "" {
		cards, err := factory.NewCardFactory().LoadCatalog(cardsPath)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if err := store.Save(ctx, c); err != nil {
				return fmt.Errorf("saving card %s: %w", c.ID, err)
			}
		}
		logger.Info("card catalog loaded", zap.String("path", cardsPath), zap.Int("cards", len(cards)))
	}

	handler := api.NewHandler(store, logger.Named("api"))
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", port), zap.String("db", dbPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
