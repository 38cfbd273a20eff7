package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/servicing-triage/internal/config"
	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
	"github.com/kirillkom/servicing-triage/internal/core/usecase"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/delivery/webhook"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/extraction"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/ingest"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/llm"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/llm/openai"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/mailbox"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/nlp"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/queue/nats"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/repository/jsonfile"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/repository/postgres"
	redisrepo "github.com/kirillkom/servicing-triage/internal/infrastructure/repository/redis"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/rules"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/storage/s3"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/textnorm"
	"github.com/kirillkom/servicing-triage/internal/observability/metrics"
)

type dedupStore interface {
	ports.DedupStore
	io.Closer
}

// model is what a provider client offers: classification and amount tagging.
type model interface {
	ports.ClassificationModel
	ports.AmountTagger
}

type App struct {
	Config config.Config

	Parser    *ingest.Parser
	Source    *ingest.Directory
	Storage   ports.ObjectStorage
	Router    *rules.Router
	Metrics   *metrics.PipelineMetrics
	ProcessUC *usecase.ProcessDocumentUseCase
	BatchUC   *usecase.BatchUseCase
	Dedup     *usecase.Deduplicator

	queueMu sync.Mutex
	queue   *nats.Queue
	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate config", err)
	}
	app := &App{Config: cfg}

	tables, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rule tables: %w", err)
	}
	router := rules.NewRouter(tables)
	app.Router = router

	store, err := openDedupStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}
	app.onClose(func() {
		if err := store.Close(); err != nil {
			slog.Warn("dedup_store_close_failed", "error", err)
		}
	})

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Storage = storage

	deliverer, err := app.openDeliverer(cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init deliverer: %w", err)
	}

	timeout := time.Duration(cfg.ModelTimeoutSeconds) * time.Second
	classifier, tagger := buildModel(cfg, router.Categories(), timeout)

	classifyUC := usecase.NewClassifyUseCase(classifier, rules.NewEngine(tables), router, timeout)
	extractor := extraction.New(nlp.New(cfg.NERBackend), tagger)

	app.Metrics = metrics.NewPipelineMetrics("triage")
	app.Dedup = usecase.NewDeduplicator(store, domain.DedupPolicy{
		SimilarityThreshold: cfg.DedupSimilarityThreshold,
		DateWindowDays:      cfg.DedupDateWindowDays,
	})
	app.ProcessUC = usecase.NewProcessDocumentUseCase(
		textnorm.New(),
		extractor,
		classifyUC,
		app.Dedup,
		router,
		storage,
		deliverer,
		app.Metrics,
	)
	app.Parser = ingest.NewParser()
	app.Source = ingest.NewDirectory(cfg.InputDir, app.Parser)
	app.BatchUC = usecase.NewBatchUseCase(
		app.Source,
		app.ProcessUC,
		app.Dedup,
		cfg.DedupResetOnStart,
		cfg.BatchConcurrency,
	)

	slog.Info("pipeline_configured",
		"model_provider", cfg.EffectiveModelProvider(),
		"ner_backend", cfg.NERBackend,
		"dedup_backend", cfg.DedupBackend,
		"output_backend", cfg.OutputBackend,
		"delivery_enabled", cfg.DeliveryEnabled,
	)
	return app, nil
}

// Queue connects to NATS on first use and reuses the connection afterwards.
func (a *App) Queue() (*nats.Queue, error) {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	if a.queue != nil {
		return a.queue, nil
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, a.Config.NATSResultSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, err
	}
	a.queue = queue
	a.onClose(queue.Close)
	return queue, nil
}

// IngestUC publishes parsed documents to the worker queue.
func (a *App) IngestUC() (*usecase.IngestDocumentUseCase, error) {
	queue, err := a.Queue()
	if err != nil {
		return nil, fmt.Errorf("connect queue: %w", err)
	}
	return usecase.NewIngestDocumentUseCase(a.Parser, queue), nil
}

// WatchUC polls the configured IMAP mailbox. The connection is closed with
// the app.
func (a *App) WatchUC() (*usecase.WatchUseCase, error) {
	cfg := a.Config
	source, err := mailbox.New(mailbox.Config{
		Host:     cfg.IMAPHost,
		Port:     cfg.IMAPPort,
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		Mailbox:  cfg.IMAPMailbox,
		TLS:      cfg.IMAPTLS,
		SaveDir:  cfg.WatchSaveDir,
	}, a.Parser)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := source.Close(); err != nil {
			slog.Warn("mailbox_close_failed", "error", err)
		}
	})
	return usecase.NewWatchUseCase(source, a.ProcessUC), nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) openDeliverer(cfg config.Config) (ports.Deliverer, error) {
	if !cfg.DeliveryEnabled {
		return nil, nil
	}
	if cfg.DeliveryTarget == config.DeliveryTargetNATS {
		return a.Queue()
	}

	executor := resilience.NewExecutor(resilience.SingleAttemptConfig(0, true))
	return webhook.New(cfg.WebhookURL, time.Duration(cfg.DeliveryTimeoutSeconds)*time.Second, executor)
}

func openDedupStore(ctx context.Context, cfg config.Config) (dedupStore, error) {
	switch cfg.DedupBackend {
	case config.DedupBackendSQLite:
		return sqlite.Open(cfg.DedupPath)
	case config.DedupBackendRedis:
		return redisrepo.Open(ctx, redisrepo.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.DedupRedisPrefix,
		})
	case config.DedupBackendPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewDedupRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case config.DedupBackendJSONFile:
		return jsonfile.NewDedupRepository(cfg.DedupPath)
	default:
		return nil, errors.New("unknown dedup backend " + cfg.DedupBackend)
	}
}

func openStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	if cfg.OutputBackend == config.OutputBackendS3 {
		return s3.New(ctx, s3.Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Profile:      cfg.S3Profile,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	}
	return localfs.New(cfg.OutputDir)
}

// buildModel returns the classification model and amount tagger for the
// configured provider. Both are nil when the pipeline runs on rules alone.
func buildModel(cfg config.Config, categories []string, timeout time.Duration) (ports.ClassificationModel, ports.AmountTagger) {
	executor := resilience.NewExecutor(resilience.SingleAttemptConfig(timeout, cfg.ModelBreakerEnabled))

	var client model
	switch cfg.EffectiveModelProvider() {
	case config.ModelProviderOpenAI:
		client = openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Timeout:    timeout,
			Categories: categories,
		}, executor)
	case config.ModelProviderOllama:
		client = ollama.New(cfg.OllamaURL, cfg.OllamaModel, categories, timeout, executor)
	default:
		return nil, nil
	}

	if cfg.ModelRateLimitRPS > 0 {
		client = llm.NewThrottled(client, client, cfg.ModelRateLimitRPS, cfg.ModelRateLimitBurst)
	}
	if !cfg.ModelAmountTagging {
		return client, nil
	}
	return client, client
}
