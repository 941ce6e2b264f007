// Command ledgerd-worker runs one of the background processing roles the
// WORKER environment variable selects: submitter, notifier, settlement,
// scheduler, reconciler, freezer, or rule-runner. Splitting roles into
// one binary with a mode switch (rather than one binary per role) keeps
// the deployment surface small while still letting each role scale
// independently by running multiple replicas with different WORKER
// values.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltyledger/ledgerd/internal/config"
	"github.com/loyaltyledger/ledgerd/internal/jobs"
	"github.com/loyaltyledger/ledgerd/internal/notify"
	"github.com/loyaltyledger/ledgerd/internal/settlement"
	"github.com/loyaltyledger/ledgerd/internal/store"
	"github.com/loyaltyledger/ledgerd/internal/worker"
	"github.com/loyaltyledger/ledgerd/pkg/rabbitmq"
	"github.com/loyaltyledger/ledgerd/pkg/webhook"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	mode := strings.TrimSpace(os.Getenv("WORKER"))
	if mode == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"WORKER mode not set\"")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, store.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime(),
		MaxConnIdleTime: cfg.DBMaxConnIdle(),
	})
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer pool.Close()
	log.Printf("level=info component=bootstrap msg=\"database connected\" worker_mode=%s", mode)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("level=info component=bootstrap msg=\"shutdown signal received\"")
		cancel()
	}()

	switch mode {
	case "submitter":
		runSubmitter(ctx, cfg, pool)
	case "notifier":
		runNotifier(ctx, cfg, pool)
	case "settlement":
		runSettlementScheduler(ctx, cfg, pool)
	case "scheduler":
		runCombinedScheduler(ctx, cfg, pool)
	case "reconciler":
		runReconciler(ctx, cfg, pool)
	case "freezer":
		runFreezer(ctx, cfg, pool)
	case "rule-runner":
		runRuleRunner(ctx, cfg, pool)
	default:
		log.Fatalf("level=fatal component=bootstrap msg=\"unknown WORKER mode\" worker_mode=%s", mode)
	}

	log.Printf("level=info component=bootstrap msg=\"worker stopped\" worker_mode=%s", mode)
}

// runSubmitter drives the receipt and redeem job tables concurrently,
// each on its own Processor.Loop, until ctx is cancelled.
func runSubmitter(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	events := connectEventProducer(cfg)
	if events != nil {
		defer events.Close()
	}

	var wg sync.WaitGroup
	wg.Add(2)

	receiptProc := &jobs.Processor[store.ReceiptJobContext]{
		Store:       store.NewReceiptJobStore(pool),
		MaxAttempts: cfg.JobMaxAttempts,
		Process:     worker.ReceiptProcessor(pool, events),
		Component:   "receipt_worker",
	}
	redeemProc := &jobs.Processor[store.RedeemJobContext]{
		Store:       store.NewRedeemJobStore(pool),
		MaxAttempts: cfg.JobMaxAttempts,
		Process:     worker.RedeemProcessor(pool, events),
		Component:   "redeem_worker",
	}

	go func() {
		defer wg.Done()
		if err := receiptProc.Loop(ctx, cfg.JobPollInterval()); err != nil && ctx.Err() == nil {
			log.Printf("level=error component=receipt_worker msg=\"loop exited\" err=%v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := redeemProc.Loop(ctx, cfg.JobPollInterval()); err != nil && ctx.Err() == nil {
			log.Printf("level=error component=redeem_worker msg=\"loop exited\" err=%v", err)
		}
	}()
	wg.Wait()
}

// runNotifier drains the webhook outbox until ctx is cancelled.
func runNotifier(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	dispatcher := &notify.Dispatcher{
		Store:       store.NewNotificationStore(pool),
		Deliverer:   webhook.NewClient(),
		Resolve:     tenantWebhookResolver(cfg),
		MaxAttempts: cfg.NotificationMaxAttempts,
	}
	if err := dispatcher.Loop(ctx, cfg.NotificationPollInterval()); err != nil && ctx.Err() == nil {
		log.Printf("level=error component=notify msg=\"loop exited\" err=%v", err)
	}
}

// tenantWebhookResolver adapts the static TENANT_WEBHOOK_URLS map and a
// single shared signing secret into the per-tenant lookup notify.Dispatcher
// needs.
func tenantWebhookResolver(cfg config.Config) notify.SecretResolver {
	return func(tenant string) (string, string, bool) {
		url, ok := cfg.TenantWebhookURLs[tenant]
		if !ok || strings.TrimSpace(url) == "" {
			return "", "", false
		}
		return url, cfg.WebhookSigningSecret, true
	}
}

// schedulerLogger is the slog logger every cron job wrapper reports
// through, matching the teacher's scheduler-service split between plain
// log.Printf on the request/transaction path and slog on the cron path.
var schedulerLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

// runSettlementScheduler runs a dedicated cron process aggregating net
// merchant liability on SettlementCronSchedule.
func runSettlementScheduler(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	reporter := &settlement.Reporter{
		Store:      store.NewSettlementStore(pool),
		LookbackBy: cfg.SettlementLookback(),
	}
	sched := worker.NewScheduler()
	sched.AddFunc(cfg.SettlementCronSchedule, "settlement_aggregation", func() {
		runSettlementAggregationJob(ctx, cfg, reporter)
	})
	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
}

// runCombinedScheduler bundles the settlement aggregation and stuck-job
// reclaim passes into one cron process, sized for deployments too small
// to justify dedicated replicas for each.
func runCombinedScheduler(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	reporter := &settlement.Reporter{
		Store:      store.NewSettlementStore(pool),
		LookbackBy: cfg.SettlementLookback(),
	}
	sched := worker.NewScheduler()
	sched.AddFunc(cfg.SettlementCronSchedule, "settlement_aggregation", func() {
		runSettlementAggregationJob(ctx, cfg, reporter)
	})
	sched.AddFunc(cfg.NotifierCronSchedule, "stuck_job_reclaim", func() {
		runStuckJobReclaimJob(ctx, cfg, pool)
	})
	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
}

// runSettlementAggregationJob is the cron job wrapper around
// settlement.Reporter.RunOnce.
func runSettlementAggregationJob(ctx context.Context, cfg config.Config, reporter *settlement.Reporter) {
	schedulerLogger.Info("starting settlement aggregation job")
	if err := reporter.RunOnce(ctx, tenantList(cfg), time.Now()); err != nil {
		schedulerLogger.Error("settlement aggregation job failed", "error", err)
		return
	}
	schedulerLogger.Info("settlement aggregation job finished")
}

// runStuckJobReclaimJob is the cron job wrapper around reclaimStuckJobsOnce.
func runStuckJobReclaimJob(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	schedulerLogger.Info("starting stuck job reclaim job")
	reclaimStuckJobsOnce(ctx, cfg, pool)
	schedulerLogger.Info("stuck job reclaim job finished")
}

// runReconciler continuously resets jobs stuck in processing, scaling
// independently of the scheduler mode's bundled cadence.
func runReconciler(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	interval := cfg.StuckJobReclaimAfter() / 2
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if ctx.Err() != nil {
			return
		}
		reclaimStuckJobsOnce(ctx, cfg, pool)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func reclaimStuckJobsOnce(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	for _, table := range []string{"receipt_jobs", "redeem_jobs"} {
		n, err := store.ReclaimStuckJobs(ctx, pool, table, cfg.StuckJobReclaimAfter())
		if err != nil {
			log.Printf("level=error component=reconciler msg=\"reclaim failed\" table=%s err=%v", table, err)
			continue
		}
		if n > 0 {
			log.Printf("level=warn component=reconciler msg=\"reclaimed stuck jobs\" table=%s count=%d", table, n)
		}
	}
}

// runFreezer drains queued freeze/unfreeze decisions and applies them,
// the only path allowed to write merchant_status.
func runFreezer(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := drainFreezeRequestsOnce(ctx, pool); err != nil {
			log.Printf("level=error component=freezer msg=\"drain failed\" err=%v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.JobPollInterval()):
		}
	}
}

func drainFreezeRequestsOnce(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	merchantStore := store.NewMerchantStore(tx)
	requests, err := merchantStore.DrainFreezeRequests(ctx, 50)
	if err != nil {
		return err
	}
	for _, req := range requests {
		if err := merchantStore.SetFrozen(ctx, req.Tenant, req.MerchantAccount, req.Frozen); err != nil {
			return err
		}
		log.Printf("level=info component=freezer msg=\"applied freeze decision\" tenant=%s merchant_account=%s frozen=%t",
			req.Tenant, req.MerchantAccount, req.Frozen)
	}
	return tx.Commit(ctx)
}

// runRuleRunner is a one-shot sync of a declarative rules file, for
// deployments without an admin UI over merchant_redemption_rules.
func runRuleRunner(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	if strings.TrimSpace(cfg.RulesFile) == "" {
		log.Fatalf("level=fatal component=rule_runner msg=\"RULES_FILE not set\"")
	}
	n, err := worker.SyncRulesFile(ctx, pool, cfg.RulesFile)
	if err != nil {
		log.Fatalf("level=fatal component=rule_runner msg=\"sync failed\" err=%v", err)
	}
	log.Printf("level=info component=rule_runner msg=\"synced rules\" file=%s count=%d", cfg.RulesFile, n)
}

// connectEventProducer dials RabbitMQ for the ledger.job.completed/failed
// fan-out, returning a nil interface (not a typed-nil pointer) when no
// broker is configured or the dial fails, so callers can pass the result
// straight to worker.ReceiptProcessor/RedeemProcessor and compare it to
// nil directly.
func connectEventProducer(cfg config.Config) rabbitmq.Publisher {
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"no rabbitmq url; job event fan-out disabled\"")
		return nil
	}
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.JobEventsExchange)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq connect failed; job event fan-out disabled\" err=%v", err)
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"rabbitmq connected\"")
	return producer
}

// tenantList returns the known tenant registry, the TENANT_API_KEYS map's
// keys doubling as the tenant list since no persisted tenant table
// exists.
func tenantList(cfg config.Config) []string {
	tenants := make([]string, 0, len(cfg.TenantAPIKeys))
	for tenant := range cfg.TenantAPIKeys {
		tenants = append(tenants, tenant)
	}
	return tenants
}

