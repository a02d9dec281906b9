// Package main wires together the review pipeline service binary.
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

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/ecomscope/review-pipeline/internal/analysis"
	"github.com/ecomscope/review-pipeline/internal/api"
	"github.com/ecomscope/review-pipeline/internal/clock/system"
	"github.com/ecomscope/review-pipeline/internal/config"
	"github.com/ecomscope/review-pipeline/internal/dispatcher"
	"github.com/ecomscope/review-pipeline/internal/hash/sha256"
	"github.com/ecomscope/review-pipeline/internal/httpfetch"
	"github.com/ecomscope/review-pipeline/internal/id/uuid"
	"github.com/ecomscope/review-pipeline/internal/logging"
	"github.com/ecomscope/review-pipeline/internal/metrics"
	"github.com/ecomscope/review-pipeline/internal/orchestrator"
	"github.com/ecomscope/review-pipeline/internal/pacing"
	memoryPublisher "github.com/ecomscope/review-pipeline/internal/publisher/memory"
	pubsubPublisher "github.com/ecomscope/review-pipeline/internal/publisher/pubsub"
	queueMemory "github.com/ecomscope/review-pipeline/internal/queue/memory"
	"github.com/ecomscope/review-pipeline/internal/review"
	"github.com/ecomscope/review-pipeline/internal/storage/gcs"
	"github.com/ecomscope/review-pipeline/internal/storage/local"
	memoryStorage "github.com/ecomscope/review-pipeline/internal/storage/memory"
	"github.com/ecomscope/review-pipeline/internal/storage/postgres"
	apiStrategy "github.com/ecomscope/review-pipeline/internal/strategy/api"
	"github.com/ecomscope/review-pipeline/internal/strategy/browser"
	"github.com/ecomscope/review-pipeline/internal/strategy/embedded"
	"github.com/ecomscope/review-pipeline/internal/strategy/execproc"
	"github.com/ecomscope/review-pipeline/internal/worker"
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
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	jitterMin, jitterMax := cfg.JitterBounds()
	pacer := pacing.New(pacing.Config{
		DefaultRPS:   cfg.Source.RateRPS,
		DefaultBurst: cfg.Source.RateBurst,
		JitterMin:    jitterMin,
		JitterMax:    jitterMax,
	})
	retry := pacing.NewRetryPolicy(
		cfg.HTTP.MaxRetries,
		time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
	)
	fetcher := httpfetch.New(httpfetch.Config{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	})

	strategies := []review.Strategy{
		apiStrategy.New(apiStrategy.Config{
			Endpoints: cfg.Source.Endpoints,
			PageSize:  cfg.Source.PageSize,
			MaxPages:  cfg.Source.MaxPages,
			SortKey:   cfg.Source.SortKey,
		}, fetcher, pacer, retry, logger.Named("api_strategy")),
		embedded.New(embedded.Config{
			Markers: cfg.Source.StateMarkers,
		}, fetcher, pacer, retry, logger.Named("embedded")),
	}
	if cfg.Browser.Enabled {
		renderer, err := browser.NewRenderer(browser.RendererConfig{
			MaxParallel:       cfg.Browser.MaxParallel,
			UserAgent:         cfg.Source.UserAgent,
			NavigationTimeout: time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("browser renderer init failed", zap.Error(err))
		} else {
			defer renderer.Close()
			strategies = append(strategies, browser.New(browser.Config{
				Markers:   cfg.Source.StateMarkers,
				Endpoints: cfg.Source.Endpoints,
				PageSize:  cfg.Source.PageSize,
				MaxPages:  cfg.Source.MaxPages,
				SortKey:   cfg.Source.SortKey,
			}, renderer, pacer, logger.Named("browser")))
		}
	}
	if cfg.External.Enabled {
		strategies = append(strategies, execproc.New(execproc.Config{
			Binary:    cfg.External.Binary,
			Endpoints: cfg.Source.Endpoints,
			PageSize:  cfg.Source.PageSize,
			MaxPages:  cfg.Source.MaxPages,
			SortKey:   cfg.Source.SortKey,
		}, nil, pacer, retry, logger.Named("execproc")))
	}

	var (
		reviewStore  review.ReviewStore
		productStore review.ProductStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.ReviewStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		defer pool.Close()
		reviewStore, err = postgres.NewReviewStoreWithPool(pool, cfg.DB.ReviewTable)
		if err != nil {
			logger.Fatal("review store init failed", zap.Error(err))
		}
		productStore, err = postgres.NewProductStoreWithPool(pool, cfg.DB.ProductTable)
		if err != nil {
			logger.Fatal("product store init failed", zap.Error(err))
		}
	} else {
		reviewStore = memoryStorage.NewReviewStore()
		products := memoryStorage.NewProductStore()
		for _, entry := range cfg.Catalog {
			products.PutProduct(review.ProductReference{
				ID:         entry.ID,
				SourceURL:  entry.SourceURL,
				ExternalID: entry.ExternalID,
			})
		}
		productStore = products
	}

	blobStore, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	var publisher review.Publisher
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		pub, err := pubsubPublisher.New(client)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		defer pub.Close()
		publisher = pub
	} else {
		publisher = memoryPublisher.New()
	}

	orch := orchestrator.New(
		orchestrator.Config{
			TargetRecords:    cfg.Acquisition.TargetRecords,
			RunBudget:        cfg.RunBudget(),
			BreakerThreshold: cfg.Acquisition.BreakerThreshold,
		},
		strategies,
		analysis.New(analysis.Config{
			PositiveLexicon: cfg.Analysis.PositiveLexicon,
			NegativeLexicon: cfg.Analysis.NegativeLexicon,
		}),
		productStore,
		reviewStore,
		hasher,
		blobStore,
		clock,
		logger.Named("orchestrator"),
	)

	runStore := memoryStorage.NewRunStore()
	queue := queueMemory.NewQueue(cfg.Acquisition.QueueDepth)
	workerCfg := worker.Config{Topic: cfg.PubSub.TopicName}
	var workers []*worker.Worker
	for i := 0; i < cfg.Acquisition.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			runStore,
			orch,
			publisher,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(
		runStore,
		reviewStore,
		productStore,
		dispatch,
		orch,
		idGen,
		clock,
		cfg,
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started")
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

func newBlobStore(ctx context.Context, cfg config.Config) (review.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init: %w", err)
		}
		return gcs.New(client, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
	case "local":
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		return memoryStorage.NewBlobStore(), nil
	}
}
