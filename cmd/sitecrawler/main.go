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

	gcppubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/mightytools/sitecrawler/internal/api"
	"github.com/mightytools/sitecrawler/internal/clock/system"
	"github.com/mightytools/sitecrawler/internal/config"
	"github.com/mightytools/sitecrawler/internal/crawl"
	"github.com/mightytools/sitecrawler/internal/export"
	collyfetcher "github.com/mightytools/sitecrawler/internal/fetcher/colly"
	headlessfetcher "github.com/mightytools/sitecrawler/internal/fetcher/headless"
	"github.com/mightytools/sitecrawler/internal/logging"
	"github.com/mightytools/sitecrawler/internal/metrics"
	memorypublisher "github.com/mightytools/sitecrawler/internal/publisher/memory"
	pubsubpublisher "github.com/mightytools/sitecrawler/internal/publisher/pubsub"
	"github.com/mightytools/sitecrawler/internal/redact"
	"github.com/mightytools/sitecrawler/internal/scheduler"
	memorystore "github.com/mightytools/sitecrawler/internal/store/memory"
	postgresstore "github.com/mightytools/sitecrawler/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	sessions, history, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer cleanup()

	exporter := buildExporter(ctx, cfg, logger)
	publisher, topic := buildPublisher(ctx, cfg, logger)
	fetcher := buildFetcher(cfg, logger)

	redactor := redact.New(cfg.Redact.Terms, cfg.Redact.Replacement)

	sched := scheduler.New(
		sessions,
		history,
		fetcher,
		redactor,
		exporter,
		publisher,
		system.NewClock(),
		system.NewSleeper(),
		scheduler.Config{
			BatchSize:      cfg.Crawler.BatchSize,
			BatchPause:     cfg.BatchPause(),
			RequestDelay:   cfg.RequestDelay(),
			FailureBackoff: cfg.FailureBackoff(),
			Topic:          topic,
		},
		logger.Named("scheduler"),
	)

	server := api.NewServer(ctx, sched, history, cfg.Crawler.MaxPagesDefault, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("sitecrawler listening", zap.Int("port", cfg.Server.Port))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// buildStores selects Postgres-backed stores when a DSN is configured and
// falls back to the in-memory implementations otherwise.
func buildStores(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (crawl.SessionStore, crawl.HistoryStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set, sessions will not survive a restart")
		return memorystore.NewSessionStore(), memorystore.NewHistoryStore(), func() {}, nil
	}
	sessions, pool, err := postgresstore.NewSessionStore(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	history := postgresstore.NewHistoryStoreWithDB(pool)
	return sessions, history, pool.Close, nil
}

func buildExporter(ctx context.Context, cfg config.Config, logger *zap.Logger) crawl.Exporter {
	if cfg.Export.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Warn("gcs client init failed, exports disabled", zap.Error(err))
			return nil
		}
		exporter, err := export.NewGCS(client, cfg.Export.GCSBucket, cfg.Export.GCSPrefix)
		if err != nil {
			logger.Warn("gcs exporter init failed, exports disabled", zap.Error(err))
			return nil
		}
		return exporter
	}
	if cfg.Export.Dir != "" {
		exporter, err := export.NewFS(cfg.Export.Dir)
		if err != nil {
			logger.Warn("fs exporter init failed, exports disabled", zap.Error(err))
			return nil
		}
		return exporter
	}
	return nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.Publisher, string) {
	if cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), ""
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Warn("pubsub client init failed, publishing disabled", zap.Error(err))
		return memorypublisher.New(), ""
	}
	return pubsubpublisher.New(client), cfg.PubSub.TopicName
}

func buildFetcher(cfg config.Config, logger *zap.Logger) crawl.Fetcher {
	if cfg.Headless.Enabled {
		logger.Info("using headless fetch collaborator")
		return headlessfetcher.New(headlessfetcher.Config{
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
		})
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
}
