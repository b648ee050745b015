package main

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/handlers"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dsp"
	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/erp"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/parttype"
	"github.com/Ramsey-B/clover/pkg/policy"
	"github.com/Ramsey-B/clover/pkg/queue"
	"github.com/Ramsey-B/clover/pkg/ratelimit"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/repositories"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/submodel"
)

const edrSweepInterval = time.Minute

// app holds every long-lived component. Fields are filled by the startup dependencies.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger
	health *health.Checker

	db       database.DB
	redis    *redis.Client
	producer *kafka.Producer

	partners  *repositories.PartnerRepository
	materials *repositories.MaterialRepository
	requests  *repositories.ErpRequestRepository
	triggers  *scheduler.TriggerRepository

	tokens     *edr.Store
	relay      *edr.RedisRelay
	negotiator *dsp.Negotiator

	reported *reconcile.Registry
	provider *submodel.Provider
	sched    *scheduler.Scheduler
	jobs     *queue.Queue
	streams  *redis.Streams
	dlq      *redis.DeadLetterQueue
	workers  *queue.Processor
	limits   *ratelimit.Manager
	erp      *erp.Correlator

	stopSweeper context.CancelFunc
}

func newApp(cfg *config.Config, logger ectologger.Logger) *app {
	return &app{
		cfg:    cfg,
		logger: logger,
		health: health.NewChecker(version),
	}
}

func (a *app) registerDependencies(boot *startup.Startup) {
	boot.AddDependency(startup.Func{Name: "database", StartFunc: a.startDatabase, StopFunc: a.stopDatabase})
	boot.AddDependency(startup.Func{Name: "redis", StartFunc: a.startRedis, StopFunc: a.stopRedis})
	boot.AddDependency(startup.Func{
		Name:      "services",
		Requires:  []string{"database", "redis"},
		StartFunc: a.buildServices,
		StopFunc: func(context.Context) error {
			return a.producer.Close()
		},
	})
	boot.AddDependency(startup.Func{
		Name:      "edr-relay",
		Requires:  []string{"services"},
		StartFunc: a.startRelay,
		StopFunc:  a.stopRelay,
	})
	boot.AddDependency(startup.Func{
		Name:      "workers",
		Requires:  []string{"services"},
		StartFunc: func(ctx context.Context) error { return a.workers.Start(ctx) },
		StopFunc:  func(ctx context.Context) error { return a.workers.Stop(ctx) },
	})
	boot.AddDependency(startup.Func{
		Name:      "scheduler",
		Requires:  []string{"workers"},
		StartFunc: a.startScheduler,
		StopFunc:  func(ctx context.Context) error { return a.sched.Stop(ctx) },
	})
}

func (a *app) startDatabase(ctx context.Context) error {
	conn, err := sqlx.ConnectContext(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	conn.SetMaxOpenConns(a.cfg.DatabaseMaxOpenConns)
	conn.SetMaxIdleConns(a.cfg.DatabaseMaxIdleConns)
	conn.SetConnMaxLifetime(a.cfg.DatabaseConnMaxLifetime)

	driver, err := postgres.WithInstance(conn.DB, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return err
	}
	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(a.cfg.DatabaseName, driver); err != nil {
		_ = conn.Close()
		return err
	}

	a.db = database.NewDatabaseInstance(conn, a.logger)
	a.health.AddCheck("database", a.db.PingContext, true)
	return nil
}

func (a *app) stopDatabase(context.Context) error {
	return a.db.Close()
}

func (a *app) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.health.AddCheck("redis", health.PingCheck(client), true)
	return nil
}

func (a *app) stopRedis(context.Context) error {
	return a.redis.Close()
}

func (a *app) buildServices(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	profile, err := policy.ProfileByName(cfg.PolicyProfile)
	if err != nil {
		return err
	}

	a.producer = kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaEventsTopic), logger)

	a.partners = repositories.NewPartnerRepository(a.db, logger)
	a.materials = repositories.NewMaterialRepository(a.db, logger)
	a.requests = repositories.NewErpRequestRepository(a.db, logger)
	a.triggers = scheduler.NewTriggerRepository(a.db, logger)

	// dataspace
	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	a.tokens = edr.NewStore(cfg.EdrTokenTTL, logger)
	a.relay = edr.NewRedisRelay(a.redis, a.tokens, cfg.EdrTokenTTL, logger)
	a.tokens.SetReplicator(a.relay)

	connector := dsp.NewClient(httpClient, dsp.ClientConfig{
		ManagementURL: cfg.EdcManagementURL,
		APIKey:        cfg.EdcAPIKey,
		Protocol:      cfg.EdcProtocol,
		CallbackURL:   httpclient.AppendPath(cfg.ServerURL, "edrendpoint"),
	}, logger)
	a.negotiator = dsp.NewNegotiator(connector, a.tokens,
		policy.NewValidator(profile, cfg.PolicyFrameworkAgreement, cfg.PolicyUsagePurpose),
		dsp.Config{
			PollInterval:       cfg.NegotiationPollInterval,
			NegotiationTimeout: cfg.NegotiationTimeout,
			TransferTimeout:    cfg.TransferTimeout,
		}, logger)
	puller := dsp.NewPuller(a.negotiator, edr.NewFetcher(httpClient, logger), a.tokens, logger)
	discoverer := parttype.NewDiscoverer(puller, a.materials, logger)

	// queue
	a.streams = redis.NewStreams(a.redis)
	a.dlq = redis.NewDeadLetterQueue(a.redis, cfg.RedisStreamsDLQ, logger)
	a.jobs = queue.NewQueue(a.streams, cfg.RedisStreamsJobQueue, logger)

	// reconciliation
	resolver := reconcile.NewDirectoryResolver(a.partners, a.materials, discoverer, logger)
	source := reconcile.NewDataspaceSource(puller)
	locker := reconcile.NewRedisLocker(redis.NewLocker(a.redis, ""), cfg.ReconcileLockTTL, cfg.ReconcileTimeout, logger)
	engineCfg := reconcile.Config{Timeout: cfg.ReconcileTimeout}

	a.reported = reconcile.NewRegistry(
		reconcile.NewEngine(reconcile.StockDomain(repositories.NewSnapshotRepository[models.ReportedStock](a.db, logger)), resolver, source, locker, a.producer, engineCfg, logger),
		reconcile.NewEngine(reconcile.DemandDomain(repositories.NewSnapshotRepository[models.ReportedDemand](a.db, logger)), resolver, source, locker, a.producer, engineCfg, logger),
		reconcile.NewEngine(reconcile.ProductionDomain(repositories.NewSnapshotRepository[models.ReportedProduction](a.db, logger)), resolver, source, locker, a.producer, engineCfg, logger),
		reconcile.NewEngine(reconcile.DeliveryDomain(repositories.NewSnapshotRepository[models.ReportedDelivery](a.db, logger)), resolver, source, locker, a.producer, engineCfg, logger),
		reconcile.NewEngine(reconcile.NotificationDomain(repositories.NewSnapshotRepository[models.ReportedNotification](a.db, logger)), resolver, source, locker, a.producer, engineCfg, logger),
	)
	ownStock := repositories.NewSnapshotRepository[models.OwnStock](a.db, logger)
	own := reconcile.NewRegistry(
		reconcile.NewEngine(reconcile.OwnStockDomain(ownStock), resolver, nil, locker, a.producer, engineCfg, logger),
	)

	// erp adapter
	a.sched = scheduler.NewScheduler(a.triggers, a.requests, a.jobs, redis.NewLocker(a.redis, ""), scheduler.Config{
		Interval:        cfg.ErpAdapterSchedulerInterval,
		RefreshInterval: cfg.ErpAdapterRefreshInterval,
		StaleTimeLimit:  cfg.ErpAdapterStaleTimeLimit,
		SammVersion:     cfg.ErpAdapterSammVersion,
		LockTTL:         cfg.ReconcileLockTTL,
		Enabled:         cfg.ErpAdapterEnabled,
	}, logger)
	erpClient := erp.NewClient(httpClient, a.requests, a.producer, erp.Config{
		URL:         cfg.ErpAdapterURL,
		AuthKey:     cfg.ErpAdapterAuthKey,
		AuthSecret:  cfg.ErpAdapterAuthSecret,
		ResponseURL: httpclient.AppendPath(cfg.ServerURL, "erp-adapter"),
	}, logger)
	a.erp = erp.NewCorrelator(a.requests, reconcile.NewErpRoute(a.partners, own, logger), logger)

	var notifier submodel.ErpNotifier
	if cfg.ErpAdapterEnabled {
		notifier = a.sched
	}
	a.provider = submodel.NewProvider(a.partners, a.materials, ownStock, discoverer, notifier, a.jobs,
		submodel.Config{ReconcileOnPartnerRequest: cfg.ReconcileOnPartnerRequest}, logger)

	// workers
	processorCfg := queue.DefaultProcessorConfig()
	processorCfg.Stream = cfg.RedisStreamsJobQueue
	processorCfg.ConsumerGroup = cfg.RedisStreamsConsumerGroup
	if cfg.RedisStreamsConsumerName != "" {
		processorCfg.ConsumerName = cfg.RedisStreamsConsumerName
	}
	processorCfg.WorkerCount = cfg.RedisStreamsWorkerCount
	a.workers = queue.NewProcessor(a.streams, a.dlq, processorCfg, logger)
	a.workers.Handle(queue.JobTypeReconcile, queue.ReconcileHandler(a.reported, logger))
	a.workers.Handle(queue.JobTypeErpRequest, queue.ErpRequestHandler(a.requests, erpClient, logger))

	a.limits = ratelimit.NewManager(redis.NewRateLimiter(a.redis, ""), ratelimit.Config{
		Limit:  cfg.PartnerRateLimit,
		Window: cfg.PartnerRateWindow,
	}, logger)

	logger.WithContext(ctx).WithFields(map[string]any{
		"own_bpnl":       cfg.OwnBpnl,
		"policy_profile": profile.Name,
		"asset_types":    a.reported.AssetTypes(),
		"erp_adapter":    cfg.ErpAdapterEnabled,
	}).Info("Services built")
	return nil
}

func (a *app) startRelay(ctx context.Context) error {
	if err := a.relay.Start(ctx); err != nil {
		return err
	}
	sweepCtx, cancel := context.WithCancel(context.Background())
	a.stopSweeper = cancel
	go a.tokens.RunSweeper(sweepCtx, edrSweepInterval)
	return nil
}

func (a *app) stopRelay(ctx context.Context) error {
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	return a.relay.Stop(ctx)
}

// startScheduler resumes the loop when tuples survived a restart; otherwise the first
// partner request starts it.
func (a *app) startScheduler(ctx context.Context) error {
	if !a.cfg.ErpAdapterEnabled {
		return nil
	}
	tuples, err := a.triggers.List(ctx)
	if err != nil {
		return err
	}
	if len(tuples) == 0 {
		return nil
	}
	if err := a.sched.Start(ctx); err != nil && !errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
		return err
	}
	return nil
}

func (a *app) registerRoutes(ctx context.Context, e *echo.Echo) error {
	a.health.RegisterRoutes(e)

	handlers.NewEDRHandler(a.tokens, a.logger).RegisterRoutes(e)
	submodels := handlers.NewSubmodelHandler(a.provider, nil)
	if a.cfg.ErpAdapterEnabled {
		submodels = handlers.NewSubmodelHandler(a.provider, a.erp)
	}
	submodels.RegisterRoutes(e, a.limits.Middleware())

	api := e.Group("/api/v1")
	if a.cfg.AuthEnabled {
		auth, err := middleware.Authentication(ctx, a.logger, a.cfg.AuthIssuerURL, a.cfg.AuthClientID, a.cfg.AuthAdminRole)
		if err != nil {
			return err
		}
		api.Use(auth)
	}
	handlers.NewPartnerHandler(a.partners, a.logger).RegisterRoutes(api)
	handlers.NewMaterialHandler(a.materials, a.partners, a.logger).RegisterRoutes(api)
	handlers.NewAdminHandler(a.reported, a.jobs, a.negotiator, a.triggers, a.requests, a.sched, a.logger).RegisterRoutes(api)
	handlers.NewDLQHandler(a.dlq, a.streams, a.cfg.RedisStreamsJobQueue, a.logger).RegisterRoutes(api)
	return nil
}
