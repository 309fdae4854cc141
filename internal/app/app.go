// -----------------------------------------------------------------------
// Last Modified: Saturday, 17th October 2026 10:05:12 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/handlers"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/chat"
	"github.com/ternarybob/dealdesk/internal/services/enrichment"
	"github.com/ternarybob/dealdesk/internal/services/feeds"
	"github.com/ternarybob/dealdesk/internal/services/knowledge"
	"github.com/ternarybob/dealdesk/internal/services/kv"
	"github.com/ternarybob/dealdesk/internal/services/llm"
	"github.com/ternarybob/dealdesk/internal/services/notion"
	"github.com/ternarybob/dealdesk/internal/services/pdf"
	"github.com/ternarybob/dealdesk/internal/services/relay"
	"github.com/ternarybob/dealdesk/internal/services/scheduler"
	"github.com/ternarybob/dealdesk/internal/services/sources"
	"github.com/ternarybob/dealdesk/internal/services/status"
	"github.com/ternarybob/dealdesk/internal/services/summary"
	"github.com/ternarybob/dealdesk/internal/services/transform"
	"github.com/ternarybob/dealdesk/internal/services/websearch"
	"github.com/ternarybob/dealdesk/internal/storage"
)

// Scheduler job names
const (
	FeedSyncJob      = handlers.FeedSyncJob
	SummaryDigestJob = "summary_digest"
)

// wsWriteTimeout bounds a single WebSocket frame write
const wsWriteTimeout = 10 * time.Second

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Core services
	Accounts         *accounts.Resolver
	ProviderFactory  *llm.ProviderFactory
	Relay            *relay.Relay
	NotionService    *notion.Service
	WebSearchClient  *websearch.Client
	Enricher         *enrichment.Enricher
	ChatService      *chat.Service
	SummaryService   *summary.Service
	PDFService       *pdf.Service
	TransformService *transform.Service
	FeedSyncService  *feeds.SyncService
	SourceService    *sources.Service
	KnowledgeService *knowledge.Service
	KVService        *kv.Service
	StatusService    *status.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	ChatHandler      *handlers.ChatHandler
	SummaryHandler   *handlers.SummaryHandler
	WSHandler        *handlers.WebSocketHandler
	SourcesHandler   *handlers.SourcesHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	SchedulerHandler *handlers.SchedulerHandler
	StatusHandler    *handlers.StatusHandler
	KVHandler        *handlers.KVHandler
	ConfigHandler    *handlers.ConfigHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	app.SchedulerService.Start()

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("default_provider", string(cfg.LLM.DefaultProvider)).
		Bool("notion_enabled", cfg.Chat.EnableNotion).
		Bool("web_search_enabled", cfg.Chat.EnableWebSearch).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer and seeds sources
func (a *App) initDatabase() error {
	ctx := context.Background()
	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Msg("Storage layer initialized")

	// Seed failures are logged but don't block startup
	created, err := storage.LoadSourcesFromFile(ctx, storageManager.SourceStorage(),
		a.Config.Sources.SeedFile, a.Config.Accounts.SharedAccountID, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", a.Config.Sources.SeedFile).Msg("Failed to load source seed file")
	} else if created > 0 {
		a.Logger.Info().Int("created", created).Msg("Seeded sources from file")
	}

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	kvStorage := a.StorageManager.KeyValueStorage()

	a.Accounts = accounts.NewResolver(&a.Config.Accounts, kvStorage, a.Logger)
	a.KVService = kv.NewService(kvStorage, a.Logger)
	a.StatusService = status.NewService(a.Logger)
	a.TransformService = transform.NewService(a.Logger)
	a.PDFService = pdf.NewService(a.Logger)

	// Generation
	a.ProviderFactory = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, kvStorage, a.Logger)
	a.Relay = relay.NewRelay(a.ProviderFactory, common.ParseDurationOr(a.Config.LLM.Timeout, 3*time.Minute), a.Logger)

	// Enrichment; both clients report missing keys as absent context
	a.NotionService = notion.NewService(&a.Config.Notion, kvStorage, a.Logger)
	a.WebSearchClient = websearch.NewClient(&a.Config.Perplexity, kvStorage, a.Logger)
	a.Enricher = enrichment.NewEnricher(a.NotionService, a.WebSearchClient, a.Logger)

	a.ChatService = chat.NewService(a.StorageManager, a.Accounts, a.Enricher, a.Relay, &a.Config.Chat, a.Logger)
	a.SummaryService = summary.NewService(a.StorageManager, a.Accounts, a.Relay, a.ProviderFactory, &a.Config.Summary, a.Logger)
	a.SourceService = sources.NewService(a.StorageManager.SourceStorage(), a.Accounts, a.Logger)
	a.KnowledgeService = knowledge.NewService(a.StorageManager, a.Accounts, a.Logger)
	a.FeedSyncService = feeds.NewSyncService(a.StorageManager, a.TransformService, &a.Config.Feeds, a.Logger)

	a.SchedulerService = scheduler.NewService(kvStorage, a.Logger)
	return a.registerJobs()
}

// registerJobs wires background work onto the scheduler. Jobs with an empty
// schedule can still be run through the API.
func (a *App) registerJobs() error {
	err := a.SchedulerService.RegisterJob(FeedSyncJob, a.Config.Feeds.Schedule,
		"Fetch every enabled feed source and import new items", a.runFeedSync)
	if err != nil {
		return err
	}

	return a.SchedulerService.RegisterJob(SummaryDigestJob, a.Config.Summary.Schedule,
		"Summarize unread research for the configured owner", a.runSummaryDigest)
}

func (a *App) runFeedSync(ctx context.Context) error {
	return a.StatusService.Track(status.StateSyncing, map[string]interface{}{"job": FeedSyncJob}, func() error {
		report, err := a.FeedSyncService.Sync(ctx, nil)
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 && len(report.Failed) == report.Sources {
			return fmt.Errorf("all %d feed sources failed", report.Sources)
		}
		return nil
	})
}

func (a *App) runSummaryDigest(ctx context.Context) error {
	return a.StatusService.Track(status.StateSummarizing, map[string]interface{}{"job": SummaryDigestJob}, func() error {
		result, err := a.SummaryService.Generate(ctx, &summary.Request{AccountID: a.Config.Summary.Owner}, relay.DiscardSink{})
		if err != nil {
			return err
		}
		if result.Empty {
			a.Logger.Info().Msg("Scheduled digest skipped, no unread items")
			return nil
		}
		if result.Outcome.Err != nil {
			return result.Outcome.Err
		}
		return nil
	})
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.SummaryHandler = handlers.NewSummaryHandler(a.SummaryService, a.PDFService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.ChatService, a.SummaryService, wsWriteTimeout, a.Logger)
	a.SourcesHandler = handlers.NewSourcesHandler(a.SourceService, a.Logger)
	a.KnowledgeHandler = handlers.NewKnowledgeHandler(a.KnowledgeService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.FeedSyncService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.SchedulerService, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.KVService, a.Logger)
	a.ConfigHandler = handlers.NewConfigHandler(a.Logger, a.Config)
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop scheduler first so no job starts against closed storage
	if a.SchedulerService != nil {
		a.FeedSyncService.Stop()
		a.SchedulerService.Stop()
	}

	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM provider")
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
