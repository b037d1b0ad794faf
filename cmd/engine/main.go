// Entry point for the Orion allocation and pricing engine.
//
// Startup order:
//   main.go
//      ↓
//   (Load config from ORION_* env vars)
//      ↓
//   (Initialize logger)
//      ↓
//   (Open store backend: memory or etcd)
//      ↓
//   (Connect Redis: idempotency + leader gate, optional)
//      ↓
//   (Wire scheduler, matcher, pass runner)
//      ↓
//   (Start API gateway + ticker, wait for SIGINT/SIGTERM)

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orion-compute/orion-engine/pkg/api/gateway"
	"github.com/orion-compute/orion-engine/pkg/config"
	"github.com/orion-compute/orion-engine/pkg/idempotency"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/matcher"
	"github.com/orion-compute/orion-engine/pkg/orchestrator"
	"github.com/orion-compute/orion-engine/pkg/scheduler"
	"github.com/orion-compute/orion-engine/pkg/store"
	"github.com/orion-compute/orion-engine/pkg/store/etcd"
	"github.com/orion-compute/orion-engine/pkg/store/memory"
	"github.com/orion-compute/orion-engine/pkg/store/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// ========================================================================
	// CONFIGURATION & LOGGING
	// ========================================================================

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		logger.Get().Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	log := logger.Get()
	log.SetLevelStr(cfg.LogLevel)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Orion engine")
	log.Info("  Store backend: %s", cfg.StoreBackend)
	log.Info("  Scheduler policy: %s", cfg.SchedulerPolicy)
	log.Info("  Pass interval: %v", cfg.PassInterval)
	log.Info("  Gateway port: %d", cfg.GatewayPort)

	// ========================================================================
	// STORAGE BACKENDS
	// ========================================================================

	var st store.Store

	switch cfg.StoreBackend {
	case "etcd":
		log.Info("Connecting to etcd at %v...", cfg.EtcdEndpoints)
		etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdDialTimeout)
		if err != nil {
			log.Error("Failed to connect to etcd: %v", err)
			os.Exit(1)
		}
		defer etcdClient.Close()
		st = etcd.NewStore(etcdClient)
	default:
		log.Info("Using in-memory store (single-node mode)")
		st = memory.NewMemoryStore()
	}

	// Redis is optional: without it the engine skips submission dedup and
	// every instance runs ticker passes
	var (
		redisClient *redis.Client
		idemMgr     *idempotency.Manager
	)
	if cfg.RedisAddr != "" {
		var err error
		redisClient, err = redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("Redis unavailable, dedup and leader gate disabled: %v", err)
		} else {
			defer redisClient.Close()
			idemMgr = idempotency.NewManager(redisClient)
		}
	}

	// ========================================================================
	// ENGINE WIRING
	// ========================================================================

	policy, err := scheduler.NewPolicy(cfg.SchedulerPolicy)
	if err != nil {
		log.Error("Invalid scheduler policy: %v", err)
		os.Exit(1)
	}

	sched := scheduler.NewAllocationScheduler(st, policy)
	match := matcher.NewOrderMatcher(st)
	runner := orchestrator.NewRunner(sched, match, redisClient, cfg.PassInterval)

	gatewayConfig := &gateway.GatewayConfig{
		Port:           cfg.GatewayPort,
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 1 << 20,
		EnableMetrics:  cfg.EnableMetrics,
	}

	apiGateway, err := gateway.NewAPIGateway(st, runner, idemMgr, gatewayConfig)
	if err != nil {
		log.Error("Failed to initialize API gateway: %v", err)
		os.Exit(1)
	}

	// ========================================================================
	// STARTUP
	// ========================================================================

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Start(ctx)

	if err := apiGateway.Start(); err != nil {
		log.Error("Failed to start API gateway: %v", err)
		os.Exit(1)
	}

	log.Info("Orion engine ready on port %d", cfg.GatewayPort)
	log.Info("Endpoints:")
	log.Info("  POST   /api/v1/gpus               - Register a GPU")
	log.Info("  GET    /api/v1/gpus               - List GPUs (?available=true)")
	log.Info("  GET    /api/v1/gpus/quote         - Pricing quote (?gpu_id=)")
	log.Info("  GET    /api/v1/gpus/availability  - Window check (?gpu_id=&start=&end=)")
	log.Info("  POST   /api/v1/jobs               - Submit a job")
	log.Info("  GET    /api/v1/jobs/status        - Job status (?job_id=)")
	log.Info("  POST   /api/v1/jobs/complete      - Complete a job (?job_id=)")
	log.Info("  POST   /api/v1/jobs/reject        - Reject a job (?job_id=)")
	log.Info("  POST   /api/v1/orders             - Place a marketplace order")
	log.Info("  POST   /api/v1/bookings           - Reserve a time window")
	log.Info("  POST   /api/v1/reviews            - Review a booking")
	log.Info("  POST   /api/v1/disputes           - Dispute a booking")
	log.Info("  POST   /api/v1/schedule/run       - Trigger a pass now")
	log.Info("  GET    /api/v1/fairness           - Owner fairness ranking")
	log.Info("  GET    /health                    - Health check")
	log.Info("  GET    /metrics                   - Prometheus metrics")

	// ========================================================================
	// GRACEFUL SHUTDOWN
	// ========================================================================

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal %v, shutting down...", sig)

	runner.Stop()
	if err := apiGateway.Stop(shutdownTimeout); err != nil {
		log.Error("Gateway shutdown failed: %v", err)
	}

	log.Info("Orion engine stopped")
}
