// Command reconcile runs the Execution Engine and Trigger Engine startup crash-recovery
// sweeps out of band, for operators who want to reconcile stuck state without restarting
// the full raptor core (SPEC_FULL.md §5.1), matching the teacher's narrow single-purpose
// cmd/ binaries (cmd/benchmark, cmd/hash_timestamps).
package main

import (
	"context"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"raptor/internal/config"
	"raptor/internal/eventbus"
	"raptor/internal/execution"
	"raptor/internal/locks"
	"raptor/internal/logger"
	"raptor/internal/repositories"
	"raptor/internal/rpcfanout"
	"raptor/internal/trigger"
	"raptor/internal/venue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DBDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	lg := logger.NewLogger("reconcile", db)
	ctx := context.Background()

	execRepo := repositories.NewExecutionRepository(db)
	posRepo := repositories.NewPositionRepository(db)
	userRepo := repositories.NewUserRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db, nil)
	lockRepo := locks.New(db)

	fanout := rpcfanout.New(cfg.RPCEndpoints(), logger.NewLogger("rpcfanout", db))
	defer fanout.Close()

	router := venue.NewRouter(
		venue.NewBondingCurveRouter(fanout.RawClient(), false, solana.PublicKey{}),
		venue.NewAmmRouter(cfg.JupiterBaseURL, cfg.JupiterAPIKey),
	)
	bus := eventbus.NewEventBus()
	defer bus.Close()

	engine := execution.New(lockRepo, execRepo, posRepo, fanout, router, execution.NewHTTPSigner(cfg.SignerURL), bus, lg)
	if err := engine.Reconcile(ctx); err != nil {
		lg.Error("execution reconciliation failed", err)
	}

	trigEngine := trigger.New(posRepo, userRepo, nil, engine, nil, outboxRepo, bus, lg, 2*time.Minute)
	if err := trigEngine.Reconcile(ctx); err != nil {
		lg.Error("trigger reconciliation failed", err)
	}

	lg.Info("reconciliation sweep complete")
}
