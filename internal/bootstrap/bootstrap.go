package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
	"github.com/kirillkom/legal-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/calculator"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/classifier/logreg"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/knowledge/yamlkb"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/retrieval/hybrid"
)

const (
	SinkLog      = "log"
	SinkNATS     = "nats"
	SinkPostgres = "postgres"
)

type Options struct {
	Logger   *slog.Logger
	Observer ports.ChatObserver
	// Random overrides the greeting source; tests pin it.
	Random ports.RandomSource
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Bot        *usecase.ChatBot
	Chat       *usecase.SerializedChat
	Evaluator  *usecase.Evaluator
	Retriever  *hybrid.Retriever
	Classifier *logreg.Classifier
	Feedback   *usecase.FeedbackUseCase

	closeFns []func()
}

// New loads the knowledge base, trains the classifier and wires the
// assistant together with the configured feedback sink.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	source, err := yamlkb.Open(cfg.KnowledgePath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	source = source.WithLogger(logger)
	kb, err := loadKnowledge(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	logger.Info("knowledge_loaded",
		"source", source.Name(),
		"documents", len(kb.Corpus),
		"categories", len(kb.Corpus.Categories()),
		"training_examples", len(kb.Training),
		"specialties", len(kb.Specialties),
	)

	classifier, err := logreg.Train(kb.Training, logreg.Options{
		TestRatio:    cfg.ClassifierTestRatio,
		Seed:         int64(cfg.ClassifierSeed),
		Iterations:   cfg.ClassifierIterations,
		LearningRate: cfg.ClassifierLearnRate,
		C:            cfg.ClassifierRegularizeC,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("train classifier: %w", err)
	}
	retriever := hybrid.New(kb.Corpus)

	random := opts.Random
	if random == nil {
		random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	bot := usecase.NewChatBot(classifier, retriever, calculator.New(), kb.Specialties, usecase.ChatBotOptions{
		TopK:     cfg.RAGTopK,
		Random:   random,
		Observer: opts.Observer,
		Logger:   logger,
	})

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Bot:        bot,
		Chat:       usecase.NewSerializedChat(bot),
		Evaluator:  bot.EvaluationFunctions(),
		Retriever:  retriever,
		Classifier: classifier,
	}

	sink, err := app.feedbackSink(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init feedback sink: %w", err)
	}
	app.Feedback = usecase.NewFeedbackUseCase(sink, logger)
	if reader, ok := sink.(ports.FeedbackReader); ok {
		app.Feedback.WithReader(reader)
	}
	return app, nil
}

func loadKnowledge(ctx context.Context, source ports.KnowledgeSource) (domain.KnowledgeBase, error) {
	corpus, err := source.LoadCorpus(ctx)
	if err != nil {
		return domain.KnowledgeBase{}, err
	}
	training, err := source.LoadTrainingSet(ctx)
	if err != nil {
		return domain.KnowledgeBase{}, err
	}
	specialties, err := source.LoadSpecialties(ctx)
	if err != nil {
		return domain.KnowledgeBase{}, err
	}
	return domain.KnowledgeBase{Corpus: corpus, Training: training, Specialties: specialties}, nil
}

func (a *App) feedbackSink(ctx context.Context) (ports.FeedbackSink, error) {
	switch strings.ToLower(strings.TrimSpace(a.Config.FeedbackSink)) {
	case "", SinkLog:
		return usecase.NewLogFeedbackSink(a.Logger), nil
	case SinkNATS:
		queue, err := OpenFeedbackQueue(a.Config, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closeFns = append(a.closeFns, queue.Close)
		return queue, nil
	case SinkPostgres:
		repo, closeDB, err := OpenFeedbackRepository(ctx, a.Config, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closeFns = append(a.closeFns, closeDB)
		return repo, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "feedback sink", errors.New("unknown sink "+a.Config.FeedbackSink))
	}
}

// ResilienceConfig maps the RESILIENCE_* settings onto an executor policy.
// Unset or invalid values fall back to resilience.DefaultConfig.
func ResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	return out
}

// OpenFeedbackQueue connects to NATS with a retrying, breaker-guarded
// publisher.
func OpenFeedbackQueue(cfg config.Config, logger *slog.Logger) (*nats.FeedbackQueue, error) {
	return nats.New(cfg.NATSURL, cfg.NATSFeedbackSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(ResilienceConfig(cfg), logger),
		Logger:             logger,
	})
}

// OpenFeedbackRepository opens Postgres and makes sure the feedback table
// exists. The returned func closes the pool.
func OpenFeedbackRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (*postgres.FeedbackRepository, func(), error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrUnavailable, "open postgres", err)
	}
	repo := postgres.NewFeedbackRepository(db, resilience.NewExecutor(ResilienceConfig(cfg), logger))
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
