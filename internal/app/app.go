package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/feed"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/handlers"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/httpclient"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/queue"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/services/lock"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/services/scheduler"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/services/summarizer"
	badgerstorage "github.com/wilfred-py/tldrsec-ai-sub003/internal/storage/badger"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/workers"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Pipeline services
	Fetcher           interfaces.DocumentFetcher
	MetadataExtractor interfaces.MetadataExtractor
	FeedProcessor     *feed.Processor
	SummaryService    interfaces.SummaryService

	// Queue
	QueueService      *queue.Service
	DeadLetterService *queue.DeadLetterService
	LockService       *lock.Service
	Processor         *queue.Processor
	SchedulerService  interfaces.SchedulerService

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	JobHandler        *handlers.JobHandler
	ProcessHandler    *handlers.ProcessHandler
	DeadLetterHandler *handlers.DeadLetterHandler
	FilingHandler     *handlers.FilingHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.loadCompanySeeds(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to load company seed file")
	}

	logger.Info().
		Str("feed_url", cfg.SEC.FeedURL).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := badgerstorage.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	fetcher, err := httpclient.NewClient(&a.Config.SEC, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create SEC client: %w", err)
	}
	a.Fetcher = fetcher

	a.MetadataExtractor = feed.NewTitleExtractor()
	a.FeedProcessor = feed.NewProcessor(
		a.StorageManager.CompanyStorage(),
		a.StorageManager.FilingStorage(),
		a.MetadataExtractor,
		a.Logger,
	)

	summaryService, err := summarizer.NewClaudeService(&a.Config.Claude, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Summarizer unavailable, summarize jobs will fail until configured")
	} else {
		a.SummaryService = summaryService
	}

	a.QueueService = queue.NewService(a.StorageManager.JobStorage(), a.Logger)
	a.DeadLetterService = queue.NewDeadLetterService(a.StorageManager.DeadLetterStorage(), a.Logger)
	a.LockService = lock.NewService(a.StorageManager.LockStorage(), a.Logger, a.Config.Jobs.LockTTLDuration())
	a.Processor = queue.NewProcessor(a.QueueService, a.DeadLetterService, a.LockService, &a.Config.Jobs, a.Logger)

	a.registerWorkers()

	a.SchedulerService = scheduler.NewService(
		&a.Config.Scheduler,
		a.QueueService,
		a.Processor,
		a.DeadLetterService,
		&a.Config.DeadLetter,
		a.Logger,
	)

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Scheduler disabled, jobs run only via the process endpoint")
	}

	return nil
}

// registerWorkers binds each job type to its handler
func (a *App) registerWorkers() {
	checkFilings := workers.NewCheckFilingsWorker(
		a.Fetcher,
		a.Config.SEC.FeedURL,
		a.FeedProcessor,
		a.MetadataExtractor,
		a.QueueService,
		a.Logger,
	)
	a.Processor.RegisterHandler(models.JobTypeCheckFilings, checkFilings.Handle)

	processFiling := workers.NewProcessFilingWorker(
		a.Fetcher,
		a.StorageManager.DocumentStorage(),
		a.QueueService,
		&a.Config.Chunking,
		a.Logger,
	)
	a.Processor.RegisterHandler(models.JobTypeProcessFiling, processFiling.Handle)

	summarizeFiling := workers.NewSummarizeFilingWorker(
		a.StorageManager.FilingStorage(),
		a.StorageManager.DocumentStorage(),
		a.StorageManager.SummaryStorage(),
		a.SummaryService,
		a.Logger,
	)
	a.Processor.RegisterHandler(models.JobTypeSummarizeFiling, summarizeFiling.Handle)

	archive := workers.NewArchiveWorker(
		a.StorageManager.FilingStorage(),
		a.DeadLetterService,
		a.Config.DeadLetter.RetentionDays,
		a.Logger,
	)
	a.Processor.RegisterHandler(models.JobTypeArchiveFilings, archive.Handle)

	a.Logger.Debug().Msg("Job handlers registered")
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.JobHandler = handlers.NewJobHandler(a.QueueService, a.Logger)
	a.ProcessHandler = handlers.NewProcessHandler(a.Processor, a.QueueService, a.Logger)
	a.DeadLetterHandler = handlers.NewDeadLetterHandler(a.DeadLetterService, a.QueueService, &a.Config.Server, a.Logger)
	a.FilingHandler = handlers.NewFilingHandler(
		a.StorageManager.FilingStorage(),
		a.StorageManager.SummaryStorage(),
		a.StorageManager.CompanyStorage(),
		a.Logger,
	)
}

// companySeed mirrors one entry of the companies.toml seed file
type companySeed struct {
	Ticker string `toml:"ticker"`
	CIK    string `toml:"cik"`
	Name   string `toml:"name"`
}

type companySeedFile struct {
	Companies []companySeed `toml:"companies"`
}

// loadCompanySeeds upserts tracked issuers from the configured seed file.
// A missing file is not an error; filings for unknown CIKs are simply
// skipped by the feed processor.
func (a *App) loadCompanySeeds(ctx context.Context) error {
	path := a.Config.Companies.SeedFile
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			a.Logger.Info().Str("path", path).Msg("No company seed file found")
			return nil
		}
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds companySeedFile
	if err := toml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	loaded := 0
	for _, seed := range seeds.Companies {
		if seed.CIK == "" || seed.Ticker == "" {
			a.Logger.Warn().Str("ticker", seed.Ticker).Str("cik", seed.CIK).Msg("Skipping incomplete company seed")
			continue
		}
		company := &models.Company{
			CIK:       feed.NormalizeCIK(seed.CIK),
			Ticker:    seed.Ticker,
			Name:      seed.Name,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.StorageManager.CompanyStorage().Upsert(ctx, company); err != nil {
			a.Logger.Error().Err(err).Str("ticker", seed.Ticker).Msg("Failed to upsert company seed")
			continue
		}
		loaded++
	}

	a.Logger.Info().Int("companies", loaded).Str("path", path).Msg("Company seeds loaded")
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
