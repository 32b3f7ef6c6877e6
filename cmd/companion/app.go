package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/internal/config"
	"github.com/fastygo/companion/internal/infrastructure/boltdb"
	"github.com/fastygo/companion/internal/infrastructure/buffer"
	"github.com/fastygo/companion/internal/infrastructure/monitor"
	redisInfra "github.com/fastygo/companion/internal/infrastructure/redis"
	"github.com/fastygo/companion/internal/services"
	"github.com/fastygo/companion/internal/services/lifecycle"
	"github.com/fastygo/companion/repository"
	boltRepo "github.com/fastygo/companion/repository/bolt"
	redisRepo "github.com/fastygo/companion/repository/redis"
	"github.com/fastygo/companion/usecase"
	assessmentUC "github.com/fastygo/companion/usecase/assessment"
	authUC "github.com/fastygo/companion/usecase/auth"
	chatUC "github.com/fastygo/companion/usecase/chat"
	profileUC "github.com/fastygo/companion/usecase/profile"
	"github.com/fastygo/companion/usecase/session"
)

// app holds every wired component for one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *lifecycle.Manager

	sessions   *session.Store
	auth       *authUC.UseCase
	profile    *profileUC.UseCase
	assessment *assessmentUC.UseCase
	chat       *chatUC.Service
	monitor    *monitor.Monitor
	processor  *services.BufferProcessor

	dispatcher *usecase.Dispatcher
	stderr     io.Writer
}

// newApp opens storage and builds the use cases. Resources are registered on
// manager. httpClient may be nil, in which case the access layer creates its
// own fasthttp client.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager, httpClient client.Doer, stderr io.Writer) (a *app, err error) {
	defer func() {
		if err != nil {
			_ = manager.Shutdown(context.Background())
		}
	}()

	db, err := boltdb.Open(cfg.Bolt.Path, boltRepo.SessionBucket, buffer.DefaultBucket)
	if err != nil {
		return nil, fmt.Errorf("open boltdb %s: %w", cfg.Bolt.Path, err)
	}
	manager.RegisterCloser("boltdb", db)

	var repo repository.SessionRepository
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		rc, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		manager.RegisterCloser("redis", rc)
		repo = redisRepo.NewSessionRepository(rc, cfg.Session.Key)
	default:
		repo = boltRepo.NewSessionRepository(db, cfg.Session.Key)
	}
	sessions := session.New(repo, logger)

	api, err := client.New(client.Config{
		BaseURL:        cfg.Endpoint(),
		RequestTimeout: cfg.API.RequestTimeout,
		UploadTimeout:  cfg.API.UploadTimeout,
		UserAgent:      cfg.API.UserAgent,
		HTTPClient:     httpClient,
		Identity:       sessions,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := buffer.New(db, buffer.DefaultBucket)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	chat := chatUC.New(api, sessions, logger)
	mon := monitor.New(chat, store, cfg.Outbox.MonitorInterval, logger)
	processor := services.NewBufferProcessor(store, mon, logger, services.ProcessorConfig{
		Interval:   cfg.Outbox.SyncInterval,
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetry,
		Retention:  cfg.Outbox.Retention,
	})
	assessment := assessmentUC.New(api, sessions, services.NewBufferBridge(processor), logger)
	processor.Handle(usecase.OperationAssessment, assessment.Replay)

	a = &app{
		cfg:        cfg,
		logger:     logger,
		manager:    manager,
		sessions:   sessions,
		auth:       authUC.New(api, sessions, logger),
		profile:    profileUC.New(api, sessions, logger),
		assessment: assessment,
		chat:       chat,
		monitor:    mon,
		processor:  processor,
		dispatcher: usecase.NewDispatcher(),
		stderr:     stderr,
	}
	a.registerCommands()
	return a, nil
}

// Close releases storage handles.
func (a *app) Close(ctx context.Context) error {
	return a.manager.Shutdown(ctx)
}
