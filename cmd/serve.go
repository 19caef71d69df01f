package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jfmyers9/partyline/internal/config"
	"github.com/jfmyers9/partyline/internal/party"
	"github.com/jfmyers9/partyline/internal/resolver"
	"github.com/jfmyers9/partyline/internal/server"
	"github.com/jfmyers9/partyline/pkg/lastfm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	serveLogFile  string
	serveLogLevel string
	serveAddr     string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the party server",
	Long: `Run the WebSocket server that hosts listening parties.

The server will:
- Create a session the first time a guild is joined and drop it when the
  last member leaves
- Resolve added tracks through Last.fm (or the configured catalog)
- Cache resolved tracks in a local SQLite database
- Handle graceful shutdown on SIGINT/SIGTERM

The server runs in the foreground and logs to stderr by default.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Log file path (default: stderr)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}

	logger := setupLogger(serveLogFile, serveLogLevel)

	logger.Info().
		Str("version", version).
		Str("resolver", cfg.Resolver.Backend).
		Msg("Starting partyline server")

	res, closeResolver, err := buildResolver(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeResolver(); err != nil {
			logger.Error().Err(err).Msg("Failed to close resolver cache")
		}
	}()

	hub := party.NewHub(logger)
	registry := party.NewRegistry(hub, logger)
	dispatcher := party.NewDispatcher(res, hub, logger)

	srv := server.New(server.Config{
		Addr:         cfg.ListenAddr,
		ReadLimit:    cfg.WS.ReadLimit,
		WriteTimeout: cfg.WS.WriteTimeout,
		PingInterval: cfg.WS.PingInterval,
	}, registry, dispatcher, hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// buildResolver assembles the configured resolver, wrapped in the SQLite
// cache when a cache path is set. The returned func closes the cache.
func buildResolver(cfg *config.Config, logger zerolog.Logger) (party.Resolver, func() error, error) {
	var res party.Resolver

	switch cfg.Resolver.Backend {
	case config.BackendCatalog:
		res = resolver.NewCatalog(cfg.Resolver.Catalog...)
	default:
		if cfg.LastFM.APIKey == "" {
			return nil, nil, fmt.Errorf("Last.fm API key not configured. Set lastfm.api_key or PARTYLINE_LASTFM_API_KEY")
		}
		client, err := lastfm.NewClient(lastfm.Config{
			APIKey: cfg.LastFM.APIKey,
			Logger: zerologAdapter{logger.With().Str("component", "lastfm").Logger()},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Last.fm client: %w", err)
		}
		res = resolver.NewLastFM(client)
	}

	if cfg.Cache.Path == "" {
		return res, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache, err := resolver.NewCache(cfg.Cache.Path, res, cfg.Cache.TTL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open resolver cache: %w", err)
	}

	if cfg.Cache.TTL > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if n, err := cache.Cleanup(ctx, cfg.Cache.TTL); err != nil {
			logger.Warn().Err(err).Msg("Failed to clean up resolver cache")
		} else if n > 0 {
			logger.Debug().Int64("removed", n).Msg("Cleaned up resolver cache")
		}
	}

	return cache, cache.Close, nil
}

// zerologAdapter satisfies lastfm.Logger.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (a zerologAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug().Msgf(format, args...)
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
