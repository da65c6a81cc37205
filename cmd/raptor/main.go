// Command raptor is the core trading process: it composes the six independent worker
// tasks of spec.md §5 (discovery subscribers, opportunity loop, execution dispatcher via
// the trigger/opportunity callers, trigger engine sweeper, graduation monitor, outbox
// worker) with explicit constructor injection, matching the teacher's cmd/ares/main.go
// composition style (no singletons, context+signal graceful shutdown).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"raptor/internal/cache"
	"raptor/internal/config"
	"raptor/internal/database"
	"raptor/internal/discovery"
	"raptor/internal/eventbus"
	"raptor/internal/execution"
	"raptor/internal/graduation"
	"raptor/internal/interfaces/repository"
	"raptor/internal/locks"
	"raptor/internal/logger"
	"raptor/internal/observability"
	"raptor/internal/opportunity"
	"raptor/internal/outbox"
	"raptor/internal/positions"
	"raptor/internal/repositories"
	"raptor/internal/rpcfanout"
	"raptor/internal/scoring"
	"raptor/internal/trigger"
	"raptor/internal/venue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DBDSN()), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("get underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := database.AutoMigrateAll(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	pgxPool, err := pgxpool.New(context.Background(), cfg.DBDSN())
	if err != nil {
		log.Fatalf("connect pgx pool: %v", err)
	}
	defer pgxPool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := observability.SetupOTelSDK(ctx)
	if err != nil {
		log.Fatalf("otel setup: %v", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	var bus eventbus.EventBusInterface
	if cfg.RedisAddr != "" {
		bus = eventbus.NewEventBusWithRedis(cfg.RedisAddr)
	} else {
		bus = eventbus.NewEventBus()
	}
	defer bus.Close()

	log0 := logger.NewLogger("raptor", db)

	// Audit trail (spec.md §4.L durability note): every execution/trigger/graduation event
	// is mirrored to system_logs for after-the-fact review, independent of the outbox's
	// user-facing notifications. Only wired for the in-memory bus, matching the teacher's
	// original audit logger, which subscribes directly to *eventbus.EventBus.
	if eb, ok := bus.(*eventbus.EventBus); ok {
		auditLogger := logger.NewAuditLogger(db, eb)
		auditLogger.Start()
	} else {
		log0.Warn("audit logger requires the in-memory event bus; skipping under redis-backed bus")
	}

	// Shared State Store (spec.md §4.L)
	userRepo := repositories.NewUserRepository(db)
	candidateRepo := repositories.NewCandidateRepository(db)
	execRepo := repositories.NewExecutionRepository(db)
	posRepo := repositories.NewPositionRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db, pgxPool)
	lockRepo := locks.New(db)

	// RPC Fan-out (spec.md §4.A) and Program Registry (spec.md §4.B, compile-time).
	fanout := rpcfanout.New(cfg.RPCEndpoints(), logger.NewLogger("rpcfanout", db))
	defer fanout.Close()

	// Venue Router (spec.md §4.C).
	bondingCurveRouter := venue.NewBondingCurveRouter(fanout.RawClient(), false, solana.PublicKey{})
	ammRouter := venue.NewAmmRouter(cfg.JupiterBaseURL, cfg.JupiterAPIKey)
	router := venue.NewRouter(bondingCurveRouter, ammRouter)

	// Position Lifecycle pricers (spec.md §4.H).
	priceCache := cache.New(cfg.PriceCacheTTL, 1000)
	pricerRegistry := positions.NewRegistry(
		positions.NewBondingCurvePricer(bondingCurveRouter),
		positions.NewAmmPoolPricer(ammRouter, priceCache),
	)
	positionsSvc := positions.NewService(posRepo, pricerRegistry, logger.NewLogger("positions", db))

	// Execution Engine (spec.md §4.D).
	signer := execution.NewHTTPSigner(cfg.SignerURL)
	engine := execution.New(lockRepo, execRepo, posRepo, fanout, router, signer, bus, logger.NewLogger("execution", db))

	// Scorer + Rule Engine (spec.md §4.F).
	metadataFetcher := scoring.NewOnChainMetadataFetcher(fanout)
	scorer := scoring.New(metadataFetcher, cfg.StrictMetadataHardStops, cfg.MinQualificationScore)

	// Opportunity Loop (spec.md §4.G).
	oppLoop := opportunity.New(userRepo, candidateRepo, scorer, engine, logger.NewLogger("opportunity", db), cfg.AutoExecuteEnabled, "solana")

	// Trigger Engine (spec.md §4.I).
	triggerEngine := trigger.New(posRepo, userRepo, positionsSvc, engine, nil, outboxRepo, bus, logger.NewLogger("trigger", db), 2*time.Minute)

	// Graduation Monitor (spec.md §4.J).
	gradMonitor := graduation.New(posRepo, bondingCurveRouter, bus, logger.NewLogger("graduation", db))

	// Notification Outbox worker (spec.md §4.K).
	var sink outbox.NotificationSink
	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log0.Warn("telegram bot init failed, outbox will retry deliveries until attempts exhaust", "error", err.Error())
		} else {
			sink = outbox.NewTelegramSink(bot, userRepo)
		}
	}
	if sink == nil {
		log0.Warn("no telegram bot token configured; notification outbox falls back to logging")
		sink = outbox.NewLoggingSink(logger.NewLogger("outbox.sink", db))
	}
	outboxWorker := outbox.New(outboxRepo, sink, logger.NewLogger("outbox", db), 2*time.Second)

	// Discovery Sources (spec.md §4.E).
	pumpSub := discovery.NewPumpSubscriber(cfg.SolanaWS, fanout, candidateRepo, cfg.PumpRESTBase, logger.NewLogger("discovery.pumpfun", db))
	meteoraSub := discovery.NewMeteoraSubscriber(cfg.SolanaWS, fanout, candidateRepo, logger.NewLogger("discovery.meteora", db))
	bagsSource := discovery.NewBagsTelegramSource(candidateRepo, logger.NewLogger("discovery.bags", db))

	// Startup reconciliation sweep (spec.md §5 crash recovery; SPEC_FULL.md §5.1).
	if err := engine.Reconcile(ctx); err != nil {
		log0.Error("execution reconciliation failed", err)
	}
	if err := triggerEngine.Reconcile(ctx); err != nil {
		log0.Error("trigger reconciliation failed", err)
	}

	// Independent worker tasks, no component touching another's state directly.
	go pumpSub.Run(ctx)
	go meteoraSub.Run(ctx)
	if cfg.TelegramBotToken != "" && cfg.BagsChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log0.Warn("bags telegram source disabled, bot init failed", "error", err.Error())
		} else {
			go bagsSource.Run(ctx, bot, cfg.BagsChatID)
		}
	}
	go runOpportunityDrain(ctx, candidateRepo, oppLoop, log0)
	go runSweepLoop(ctx, "trigger", cfg.TriggerSweepInterval, triggerEngine.Sweep, log0)
	go runFanoutMetrics(ctx, fanout, observability.NewMetricsCollector(db, "raptor"))
	if cfg.GraduationEnabled {
		go runSweepLoop(ctx, "graduation", cfg.GraduationPollInterval, gradMonitor.Poll, log0)
	}
	go outboxWorker.Run(ctx)

	log0.Info("raptor core started", "auto_execute", cfg.AutoExecuteEnabled, "graduation_enabled", cfg.GraduationEnabled)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log0.Info("shutting down raptor core")
	cancel()
	// Outbox/trigger/discovery tasks observe ctx.Done() and finish in-flight work before
	// returning (spec.md §5 "Shutdown is graceful").
	time.Sleep(500 * time.Millisecond)
}

// runSweepLoop runs fn on interval until ctx is canceled, used by both the Trigger
// Engine sweeper and the Graduation Monitor poller (spec.md §4.I, §4.J cadence).
func runSweepLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error, log *logger.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Warn(name+" sweep failed", "error", err.Error())
			}
		}
	}
}

// runFanoutMetrics mirrors RPC Fan-out endpoint health into service_metrics gauges, the
// DB-backed counterpart to the OTel traces set up by observability.SetupOTelSDK: OTel
// covers request spans, this covers long-lived endpoint-up/down state an operator can
// query historically without a trace backend.
func runFanoutMetrics(ctx context.Context, fanout *rpcfanout.Fanout, metrics *observability.MetricsCollector) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, h := range fanout.Health() {
				healthy := 0.0
				if h.Healthy {
					healthy = 1.0
				}
				metrics.RecordGauge("rpc_endpoint_healthy", healthy, map[string]string{"endpoint": h.Endpoint})
			}
		}
	}
}

// runOpportunityDrain polls for freshly discovered candidates and hands each one
// through the Opportunity Loop (spec.md data flow E -> G). Discovery sources upsert
// candidates independently of this loop's cadence; this drains whatever is pending.
func runOpportunityDrain(ctx context.Context, candidates repository.LaunchCandidateRepository, loop *opportunity.Loop, log *logger.Logger) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := candidates.ListNew(ctx)
			if err != nil {
				log.Warn("list new candidates failed", "error", err.Error())
				continue
			}
			for i := range pending {
				if err := loop.ProcessCandidate(ctx, &pending[i]); err != nil {
					log.Warn("process candidate failed", "mint", pending[i].Mint, "error", err.Error())
				}
			}
		}
	}
}
