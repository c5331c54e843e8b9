package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/resume-screener/internal/config"
	"github.com/kirillkom/resume-screener/internal/core/ports"
	"github.com/kirillkom/resume-screener/internal/core/usecase"
	"github.com/kirillkom/resume-screener/internal/export"
	"github.com/kirillkom/resume-screener/internal/infrastructure/extractor"
	"github.com/kirillkom/resume-screener/internal/infrastructure/jobcontext"
	"github.com/kirillkom/resume-screener/internal/infrastructure/llm/openai"
	natsqueue "github.com/kirillkom/resume-screener/internal/infrastructure/queue/nats"
	"github.com/kirillkom/resume-screener/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/resume-screener/internal/infrastructure/resilience"
	"github.com/kirillkom/resume-screener/internal/infrastructure/source/localfs"
	"github.com/kirillkom/resume-screener/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Orchestrator *usecase.Orchestrator
	Review       *usecase.ReviewService
	Export       *export.Service
	JobContext   ports.JobContext

	OrchestratorMetrics *metrics.OrchestratorMetrics
	HTTPMetrics         *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	profiles := postgres.NewProfileRepository(db)
	if err := profiles.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure profiles schema: %w", err)
	}
	decisions := postgres.NewDecisionRepository(db)
	if err := decisions.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure decisions schema: %w", err)
	}

	source, err := localfs.New(cfg.CandidatesDir, extractor.New())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init candidate source: %w", err)
	}

	jobCtx, err := jobcontext.New(cfg.DataDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job context store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger))
	generator := openai.New(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, openai.WithResilience(executor))

	var publisher ports.EventPublisher
	var queue *natsqueue.Publisher
	if cfg.NATSEnabled {
		queue, err = natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		publisher = queue
	}

	orchestratorMetrics := metrics.NewOrchestratorMetrics("resume-screener")
	httpMetrics := metrics.NewHTTPServerMetrics("resume-screener")

	composer := usecase.NewComposer(generator)
	scheduler := usecase.NewRetryScheduler(cfg.RunConfig.MaxRetries, cfg.RunConfig.BackoffBase)
	orchestrator := usecase.NewOrchestrator(
		source,
		composer,
		scheduler,
		profiles,
		jobCtx,
		publisher,
		orchestratorMetrics,
		logger,
		cfg.RunConfig,
	)

	review := usecase.NewReviewService(source, profiles, decisions, jobCtx)
	exporter := export.NewService(review, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Orchestrator: orchestrator,
		Review:       review,
		Export:       exporter,
		JobContext:   jobCtx,

		OrchestratorMetrics: orchestratorMetrics,
		HTTPMetrics:         httpMetrics,

		closeFn: func() {
			orchestrator.Close()
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
