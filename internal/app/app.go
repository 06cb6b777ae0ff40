package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tryon-web/internal/broker"
	kafka_impl "tryon-web/internal/broker/kafka"
	"tryon-web/internal/config"
	"tryon-web/internal/domain"
	tryon_h "tryon-web/internal/http-server/handler/tryon"
	"tryon-web/internal/http-server/router"
	minio_repo "tryon-web/internal/repository/preview/cloud/minio"
	memory_repo "tryon-web/internal/repository/preview/memory"
	"tryon-web/internal/tryonapi"
	tryon_uc "tryon-web/internal/usecase/tryon"
	"tryon-web/internal/usecase/validation"
	"tryon-web/internal/worker"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type previewStore interface {
	Put(ctx context.Context, file *domain.File) (domain.PreviewRef, error)
	Get(ctx context.Context, ref domain.PreviewRef) (*domain.Preview, []byte, error)
	Release(ctx context.Context, ref domain.PreviewRef) error
	Close() error
}

type App struct {
	cfg      *config.Config
	server   *http.Server
	logger   *zlog.Zerolog
	client   *tryonapi.Client
	usecase  *tryon_uc.TryOnUsecase
	previews previewStore
	events   *worker.Dispatcher
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
	retries := cfg.DefaultRetryStrategy()

	policy := validation.Policy{
		MaxSize:      cfg.Upload.MaxSize,
		AllowedTypes: cfg.Upload.AllowedTypes,
		MaxWidth:     cfg.Upload.MaxWidth,
		MaxHeight:    cfg.Upload.MaxHeight,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	previews, err := newPreviewStore(cfg, retries, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview repository: %w", err)
	}

	publisher, err := newPublisher(cfg, retries, logger)
	if err != nil {
		previews.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	dispatcher := worker.NewDispatcher(publisher, cfg.Worker.Concurrency, cfg.Worker.QueueSize, logger)

	client := tryonapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)

	usecase := tryon_uc.NewTryOnUsecase(policy, previews, client, dispatcher, cfg.Session.TTL, logger)

	tryOnHandler := tryon_h.NewTryOnHandler(usecase, cfg.Session.CookieName, logger)

	h := &router.Handler{
		TryOnHandler: tryOnHandler,
	}

	mux := router.SetupRouter(h, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:      cfg,
		server:   server,
		logger:   logger,
		client:   client,
		usecase:  usecase,
		previews: previews,
		events:   dispatcher,
	}, nil
}

func newPreviewStore(cfg *config.Config, retries retry.Strategy, logger *zlog.Zerolog) (previewStore, error) {
	if cfg.Preview.Backend == "minio" {
		repo, err := minio_repo.NewMinIORepository(cfg, retries, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("endpoint", cfg.MinIO.Endpoint).Str("bucket", cfg.MinIO.Bucket).Msg("Using MinIO preview storage")
		return repo, nil
	}
	return memory_repo.NewPreviewRepository(), nil
}

func newPublisher(cfg *config.Config, retries retry.Strategy, logger *zlog.Zerolog) (broker.Publisher, error) {
	if !cfg.KafkaEnabled() {
		logger.Info().Msg("Kafka brokers not configured, try-on events disabled")
		return broker.NoopPublisher{}, nil
	}

	err := retry.Do(func() error {
		return kafka_impl.EnsureTopic(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	}, retries)
	if err != nil {
		return nil, err
	}

	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.EventsTopic).Msg("Publishing try-on events to Kafka")
	return kafka_impl.NewProducerClient(cfg), nil
}

func (a *App) Run() error {
	a.logger.Info().Str("addr", a.cfg.Server.Addr).Str("backend", a.client.BaseURL()).Msg("Starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.handleSignals(cancel)
	a.events.Start()
	go a.usecase.RunJanitor(ctx, a.cfg.Session.SweepInterval)
	go a.probeBackend(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.logger.Error().Err(err).Msg("Server error")
		a.cleanup()
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("Server shutdown failed")
		}

		a.cleanup()

		a.logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

// probeBackend checks the try-on service once at start-up. An unreachable
// service is only reported; requests are still served.
func (a *App) probeBackend(ctx context.Context) {
	err := retry.Do(func() error {
		if ctx.Err() != nil {
			return nil
		}
		probeCtx, cancel := context.WithTimeout(ctx, a.cfg.Backend.Timeout)
		defer cancel()
		_, err := a.client.Health(probeCtx)
		return err
	}, a.cfg.DefaultRetryStrategy())
	if err != nil {
		a.logger.Warn().Err(err).Str("backend", a.client.BaseURL()).Msg("Try-on service is not reachable")
		return
	}
	a.logger.Info().Str("backend", a.client.BaseURL()).Msg("Try-on service is reachable")
}

func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.usecase.Close(ctx)

	if err := a.previews.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close preview storage")
	}

	if err := a.events.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event publisher")
	}
}

func (a *App) handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	cancel()
}
