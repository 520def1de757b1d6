package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/cem-dashboard/internal/api"
	"github.com/rickgao/cem-dashboard/internal/config"
	"github.com/rickgao/cem-dashboard/internal/connection"
	"github.com/rickgao/cem-dashboard/internal/dashboard"
	"github.com/rickgao/cem-dashboard/internal/database"
	"github.com/rickgao/cem-dashboard/internal/journal"
	"github.com/rickgao/cem-dashboard/internal/logging"
	"github.com/rickgao/cem-dashboard/internal/mirror"
	"github.com/rickgao/cem-dashboard/internal/poller"
	"github.com/rickgao/cem-dashboard/internal/version"
)

const (
	shutdownTimeout = 10 * time.Second
	apiRetryBackoff = 250 * time.Millisecond
	journalInitCap  = 1024
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting dashboard",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("dashboard failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dashboard stopped")
}

func loadConfig(path string) (*config.DashboardConfig, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

// connectionConfig maps the file config onto the client config.
func connectionConfig(cfg *config.DashboardConfig) connection.Config {
	return connection.Config{
		URL:               cfg.Backend.WSURL,
		ReconnectInterval: cfg.Connection.ReconnectInterval,
		RequestTimeout:    cfg.Connection.RequestTimeout,
		HandshakeTimeout:  cfg.Connection.HandshakeTimeout,
		WriteTimeout:      cfg.Connection.WriteTimeout,
		PingInterval:      cfg.Connection.PingInterval,
		PingTimeout:       cfg.Connection.PingTimeout,
		CorrelationIDs:    cfg.Connection.CorrelationIDs,
	}
}

func run(ctx context.Context, cfg *config.DashboardConfig, logger *slog.Logger) error {
	client := connection.NewClient(connectionConfig(cfg), logger)
	defer client.Close()

	session := dashboard.NewSession(logger)
	session.Attach(client)
	defer session.Close()

	service := dashboard.NewService(client, logger)

	comps := components{
		client:  client,
		session: session,
		ops:     service,
		logger:  logger,
	}

	// Journal
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := journal.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		buf := journal.NewBuffer[journal.Record](journalInitCap, cfg.Journal.BufferSize)
		writer := journal.NewWriter(journal.WriterConfig{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, buf, store, logger.With("component", "journal"))
		if err := writer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			writer.Stop(stopCtx)
		}()

		remove := client.AddListener(journal.NewRecorder(buf, logger))
		defer remove()

		comps.journal = writer
		comps.buffer = buf
	}

	// Mirror
	if cfg.Mirror.Enabled {
		pub, err := mirror.Connect(cfg.Mirror, logger)
		if err != nil {
			return err
		}
		defer pub.Close()

		m := mirror.New(mirror.Config{
			TopicPrefix: cfg.Mirror.TopicPrefix,
			QoS:         cfg.Mirror.QoS,
			BufferSize:  cfg.Mirror.BufferSize,
		}, pub, logger)
		defer m.Close()

		remove := client.AddListener(m)
		defer remove()

		comps.mirror = m
	}

	// Device discovery
	apiClient := api.NewClient(cfg.Backend.HTTPURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Poller.Timeout),
		api.WithRetries(cfg.Poller.MaxRetries, apiRetryBackoff),
	)
	devicePoller := poller.New(poller.Config{
		Interval: cfg.Poller.Interval,
		Timeout:  cfg.Poller.Timeout,
	}, apiClient, session, logger.With("component", "poller"))
	if err := devicePoller.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		devicePoller.Stop(stopCtx)
	}()
	comps.poller = devicePoller

	if err := client.Connect(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Health.Port > 0 {
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           createHandler(cfg.Health.Path, comps),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		probeBackend(gctx, client, service, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("dashboard running", "backend", cfg.Backend.WSURL)

	err := g.Wait()
	logger.Info("shutting down...")
	return err
}

// probeBackend waits for the channel to open once and logs the backend's
// log level and trusted SKIs.
func probeBackend(ctx context.Context, client *connection.Client, service *dashboard.Service, logger *slog.Logger) {
	if err := client.WaitForState(ctx, connection.StateOpen); err != nil {
		return
	}

	if level, err := service.GetLogLevel(ctx); err != nil {
		logger.Warn("backend log level unavailable", "error", err)
	} else {
		logger.Info("backend log level", "level", level)
	}

	if skis, err := service.GetRemoteSKIs(ctx); err != nil {
		logger.Warn("remote skis unavailable", "error", err)
	} else {
		logger.Info("backend trusts remote skis", "count", len(skis))
	}
}
