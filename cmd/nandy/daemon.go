package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/nandy/internal/audit"
	"github.com/fentz26/nandy/internal/config"
	"github.com/fentz26/nandy/internal/controlplane"
	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/metrics"
	"github.com/fentz26/nandy/internal/notify"
	"github.com/fentz26/nandy/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbDriver   string
	dbDSN      string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Nandy daemon",
	Long:  `Starts the Nandy daemon which provides the HTTP API and publishes change notifications.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbDriver, "db-driver", "", "Database driver, sqlite or pgx (overrides config)")
	daemonCmd.Flags().StringVar(&dbDSN, "db", "", "SQLite path or Postgres URL (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Nandy daemon...")

	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbDriver != "" {
		cfg.Database.Driver = dbDriver
	}
	if dbDSN != "" {
		cfg.Database.DSN = dbDSN
	}

	ctx := context.Background()

	// Initialize store
	s, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	log.Printf("Using %s database", s.Driver())

	// Initialize components
	m := metrics.New()
	notifier, closeNotifier, err := newNotifier(ctx, cfg.Notify)
	if err != nil {
		s.Close()
		return err
	}
	defer closeNotifier()

	eng := engine.New(m.Notifier(notifier),
		engine.WithStatuses(cfg.Statuses),
		engine.WithLanguage(cfg.Language),
	)

	var pdr *audit.PDRWriter
	if cfg.Audit {
		pdr = audit.NewPDRWriter(s)
	}

	// Create service and server
	service := controlplane.NewService(s, eng, pdr, m)
	server := controlplane.NewServer(service, cfg.Listen)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// newNotifier builds the configured publisher, plus the hook when one is
// set, and its cleanup.
func newNotifier(ctx context.Context, cfg config.NotifyConfig) (notify.Notifier, func(), error) {
	n, closeFn, err := newDriver(ctx, cfg)
	if err != nil || cfg.Hook.Command == "" {
		return n, closeFn, err
	}
	log.Printf("Running notification hook %s", cfg.Hook.Command)
	hook := notify.NewExec(cfg.Hook.Command, cfg.Hook.Args, cfg.Hook.Kinds,
		time.Duration(cfg.Hook.TimeoutSeconds)*time.Second)
	return notify.Multi{n, hook}, func() {
		hook.Wait()
		closeFn()
	}, nil
}

func newDriver(ctx context.Context, cfg config.NotifyConfig) (notify.Notifier, func(), error) {
	switch cfg.Driver {
	case config.NotifyNone:
		return notify.Nop{}, func() {}, nil
	case config.NotifyLog, "":
		return notify.Log{}, func() {}, nil
	case config.NotifyRedis:
		r := notify.NewRedis(cfg.Redis.Addr, cfg.Redis.Channel)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			// Publishing is fire-and-forget; keep going and let each publish log.
			log.Printf("Warning: redis at %s unreachable: %v", cfg.Redis.Addr, err)
		} else {
			log.Printf("Publishing notifications to redis %s", cfg.Redis.Addr)
		}
		return r, func() {
			if err := r.Close(); err != nil {
				log.Printf("Redis close error: %v", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
}
