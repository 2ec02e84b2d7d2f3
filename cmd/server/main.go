// Command server wires the ledger, policy engine, governance state machine,
// and HTTP transport, then runs until interrupted. Backends are chosen by
// configuration: postgres, redis, and kafka when configured, in-process
// implementations otherwise.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"covenant/internal/capability"
	capabilityhandler "covenant/internal/capability/handler"
	"covenant/internal/compliance"
	compliancehandler "covenant/internal/compliance/handler"
	"covenant/internal/events"
	eventskafka "covenant/internal/events/kafka"
	"covenant/internal/governance"
	governancehandler "covenant/internal/governance/handler"
	governancemetrics "covenant/internal/governance/metrics"
	govstore "covenant/internal/governance/store"
	govmemory "covenant/internal/governance/store/memory"
	govpostgres "covenant/internal/governance/store/postgres"
	"covenant/internal/governance/targets"
	ledgerstore "covenant/internal/ledger/store"
	ledgermemory "covenant/internal/ledger/store/memory"
	ledgerpostgres "covenant/internal/ledger/store/postgres"
	"covenant/internal/platform/config"
	"covenant/internal/platform/httpserver"
	"covenant/internal/platform/logger"
	"covenant/internal/platform/middleware"
	platformpg "covenant/internal/platform/postgres"
	platformredis "covenant/internal/platform/redis"
	"covenant/internal/policy"
	policymetrics "covenant/internal/policy/metrics"
	"covenant/internal/transfer"
	transferhandler "covenant/internal/transfer/handler"
	"covenant/internal/transfer/quota"
	httptransport "covenant/internal/transport/http"
	id "covenant/pkg/domain"
)

// governanceModule is the identity executed proposals dispatch as. The low
// bytes spell "governance"; it holds every capability the dispatch targets
// require and nothing else can authenticate as it.
var governanceModule = id.MustAccountID("0x00000000000000000000676f7665726e616e6365")

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		ledger    ledgerstore.Store
		proposals govstore.Store
		registry  capability.Registry
	)
	if cfg.PostgresURL != "" {
		pool, err := platformpg.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			fatal(log, "postgres connect failed", err)
		}
		defer pool.Close()

		ledgerPG := ledgerpostgres.New(pool)
		if err := ledgerPG.Migrate(ctx); err != nil {
			fatal(log, "ledger migration failed", err)
		}
		govPG := govpostgres.New(pool)
		if err := govPG.Migrate(ctx); err != nil {
			fatal(log, "governance migration failed", err)
		}
		capPG := capability.NewPostgresRegistry(pool)
		if err := capPG.Migrate(ctx); err != nil {
			fatal(log, "capability migration failed", err)
		}
		ledger, proposals, registry = ledgerPG, govPG, capPG
		log.Info("using postgres stores")
	} else {
		ledger, proposals, registry = ledgermemory.New(), govmemory.New(), capability.NewMemoryRegistry()
		log.Info("using in-memory stores")
	}

	var quotaStore quota.Store = quota.NewInMemoryStore()
	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			fatal(log, "redis connect failed", err)
		}
		defer redisClient.Close()
		quotaStore = quota.NewRedisStore(redisClient.Client)
		log.Info("using redis daily-quota store")
	}

	var publisher events.Publisher = events.NewMemoryPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := eventskafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			fatal(log, "kafka connect failed", err)
		}
		publisher = kafkaPublisher
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	configStore := policy.NewMemoryConfigStore()
	engine := policy.NewEngine(transfer.NewView(ledger, quotaStore), configStore,
		policy.WithMetrics(policymetrics.New()))

	transfers, err := transfer.New(ledger, quotaStore, engine, registry,
		transfer.WithLogger(log), transfer.WithPublisher(publisher))
	if err != nil {
		fatal(log, "transfer service init failed", err)
	}
	comp, err := compliance.New(ledger, configStore, registry,
		compliance.WithLogger(log), compliance.WithPublisher(publisher))
	if err != nil {
		fatal(log, "compliance service init failed", err)
	}
	caps, err := capability.NewService(registry,
		capability.WithLogger(log), capability.WithPublisher(publisher))
	if err != nil {
		fatal(log, "capability service init failed", err)
	}

	gov, err := governance.New(proposals, registry, governanceModule, governance.Params{
		VotingPeriod:   cfg.VotingPeriod,
		ExecutionDelay: cfg.ExecutionDelay,
		RequiredVotes:  cfg.RequiredVotes,
	}, governance.WithLogger(log), governance.WithPublisher(publisher),
		governance.WithMetrics(governancemetrics.New()))
	if err != nil {
		fatal(log, "governance service init failed", err)
	}
	gov.RegisterTarget("ledger", targets.NewLedger(transfers))
	gov.RegisterTarget("policy", targets.NewPolicy(comp))
	gov.RegisterTarget("governance", gov.SelfTarget())

	if err := bootstrapCapabilities(ctx, registry, cfg.AdminAccount, log); err != nil {
		fatal(log, "capability bootstrap failed", err)
	}

	router := httptransport.NewRouter(httptransport.Handlers{
		Transfer:   transferhandler.New(transfers, log),
		Compliance: compliancehandler.New(comp, ledger, log),
		Governance: governancehandler.New(gov, log),
		Capability: capabilityhandler.New(caps, log),
	}, middleware.NewHMACValidator([]byte(cfg.JWTSigningKey)), log)

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		fatal(log, "server exited", err)
	}
	log.Info("server stopped")
}

// bootstrapCapabilities grants the governance module account the
// capabilities its dispatch targets check, and seeds the configured
// operator account with Administrator so the system is administrable from
// first boot.
func bootstrapCapabilities(ctx context.Context, registry capability.Registry, adminAccount string, log *slog.Logger) error {
	for _, kind := range []capability.Kind{
		capability.Administrator,
		capability.Compliance,
		capability.Minter,
		capability.Burner,
		capability.Pauser,
	} {
		if err := registry.Grant(ctx, kind, governanceModule); err != nil {
			return err
		}
	}

	if adminAccount == "" {
		log.Warn("no admin account configured; only governance proposals can administer the system")
		return nil
	}
	admin, err := id.ParseAccountID(adminAccount)
	if err != nil {
		return err
	}
	return registry.Grant(ctx, capability.Administrator, admin)
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
