package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/time/rate"

	"govdash/internal/admin"
	adminhandler "govdash/internal/admin/handler"
	"govdash/internal/compliance"
	compliancehandler "govdash/internal/compliance/handler"
	compliancemetrics "govdash/internal/compliance/metrics"
	"govdash/internal/events"
	"govdash/internal/feed"
	feedhandler "govdash/internal/feed/handler"
	feedmetrics "govdash/internal/feed/metrics"
	jwttoken "govdash/internal/jwt_token"
	"govdash/internal/lifecycle"
	lifecyclehandler "govdash/internal/lifecycle/handler"
	lifecyclemetrics "govdash/internal/lifecycle/metrics"
	"govdash/internal/notification"
	notificationhandler "govdash/internal/notification/handler"
	notificationmetrics "govdash/internal/notification/metrics"
	notifmodels "govdash/internal/notification/models"
	notifstore "govdash/internal/notification/store"
	notifmemory "govdash/internal/notification/store/memory"
	notifpostgres "govdash/internal/notification/store/postgres"
	"govdash/internal/platform/config"
	"govdash/internal/platform/httpserver"
	"govdash/internal/platform/kafka"
	"govdash/internal/platform/logger"
	httpmetrics "govdash/internal/platform/metrics"
	"govdash/internal/platform/postgres"
	"govdash/internal/platform/redis"
	"govdash/internal/policy"
	policymetrics "govdash/internal/policy/metrics"
	"govdash/internal/ratelimit"
	ratelimitmetrics "govdash/internal/ratelimit/metrics"
	"govdash/internal/ratelimit/store/bucket"
	registrymodels "govdash/internal/registry/models"
	"govdash/internal/registry/store"
	registrymemory "govdash/internal/registry/store/memory"
	registrypostgres "govdash/internal/registry/store/postgres"
	"govdash/internal/registry/txn"
	"govdash/internal/sweep"
	sweepmetrics "govdash/internal/sweep/metrics"
	"govdash/pkg/domain"
	"govdash/pkg/platform/audit"
	"govdash/pkg/platform/audit/publisher"
	auditkafka "govdash/pkg/platform/audit/store/kafka"
	auditmemory "govdash/pkg/platform/audit/store/memory"
	auditpostgres "govdash/pkg/platform/audit/store/postgres"
	"govdash/pkg/platform/circuit"
)

const auditBuffer = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional backing services selected by configuration.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// checks returns a readiness probe for each configured backend.
func (i *infra) checks() map[string]check {
	checks := make(map[string]check)
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Check
	}
	if i.kafka != nil {
		checks["kafka"] = i.kafka.Ping
	}
	return checks
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		in.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			in.close()
			return nil, err
		}
		log.Info("using postgres registry")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close()
		return nil, err
	}
	in.redis = rdb

	kc, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		in.close()
		return nil, err
	}
	if kc != nil {
		in.kafka = kc
		if err := kafka.EnsureTopics(ctx, kc, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
			cfg.Kafka.AuditTopic, cfg.Kafka.EventsTopic); err != nil {
			in.close()
			return nil, err
		}
		log.Info("kafka streams enabled", "brokers", cfg.Kafka.Brokers)
	}
	return in, nil
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	systemID, err := domain.ParseActorID(cfg.Auth.ServiceActorID)
	if err != nil {
		return fmt.Errorf("SERVICE_ACTOR_ID: %w", err)
	}
	systemActor := domain.Actor{ID: systemID, Role: domain.RoleService}

	requiredTypes, err := registrymodels.ParseDocumentTypes(cfg.Compliance.RequiredDocumentTypes)
	if err != nil {
		return fmt.Errorf("REQUIRED_DOCUMENT_TYPES: %w", err)
	}

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	// Registry, notification and audit stores.
	var (
		registryStore store.Store
		notifStore    notifstore.Store
		auditStores   []audit.Store
		runner        txn.Runner
	)
	if in.db != nil {
		registryStore = registrypostgres.New(in.db)
		notifStore = notifpostgres.New(in.db)
		auditStores = append(auditStores, auditpostgres.New(in.db))
		runner = txn.NewSQL(in.db)
	} else {
		registryStore = registrymemory.New()
		notifStore = notifmemory.New()
		auditStores = append(auditStores, auditmemory.NewInMemoryStore())
		runner = txn.NoTx{}
	}
	if in.kafka != nil {
		auditStores = append(auditStores, auditkafka.New(in.kafka, cfg.Kafka.AuditTopic))
	}
	shopTx := txn.NewShopTx(runner)

	auditMetrics := audit.NewMetrics()
	auditPublisher := publisher.NewPublisher(audit.Fanout(auditStores...),
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(log),
		publisher.WithMetrics(auditMetrics),
	)
	defer auditPublisher.Close()
	auditor := audit.NewRecorder(auditPublisher,
		audit.WithRecorderLogger(log),
		audit.WithRecorderMetrics(auditMetrics),
	)

	evaluator, err := policy.New(
		policy.NewStoreRoleLookup(registryStore, policymetrics.New()),
		policy.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// Rate limiting.
	var buckets ratelimit.BucketStore = bucket.New()
	if in.redis != nil {
		buckets = bucket.NewRedis(in.redis.Client)
	}
	limiter := ratelimit.New(buckets, ratelimit.LimitsFromConfig(cfg.RateLimit),
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)

	// Live feed and lifecycle event bus.
	broker := feed.NewBroker(feed.WithMetrics(feedmetrics.New()))
	defer broker.Close()
	var feedPublisher feed.Publisher = broker
	if in.redis != nil {
		relay := feed.NewRedisBroker(in.redis.Client, "", broker, log)
		feedPublisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("feed relay stopped", "error", err)
			}
		}()
	}
	sinks := []events.Sink{feed.NewLifecycleSink(feedPublisher)}
	if in.kafka != nil {
		sinks = append(sinks, events.NewKafkaSink(in.kafka, cfg.Kafka.EventsTopic))
	}
	bus := events.NewBus(log, sinks...)

	// Notifications.
	notifMetrics := notificationmetrics.New()
	nc := cfg.Notification
	providerSender := func(channel notifmodels.Channel) notification.Sender {
		return notification.NewProviderSender(channel,
			notification.NewLogProvider(log),
			rate.NewLimiter(rate.Limit(nc.SendRatePerSec), nc.SendBurst),
			circuit.New(string(channel),
				circuit.WithFailureThreshold(nc.BreakerThreshold),
				circuit.WithCooldown(nc.BreakerCooldown),
			),
			notifMetrics,
		)
	}
	dispatcher := notification.NewDispatcher(notifStore,
		notification.WithLogger(log),
		notification.WithMetrics(notifMetrics),
		notification.WithAuditor(auditor),
		notification.WithSender(providerSender(notifmodels.ChannelEmail)),
		notification.WithSender(providerSender(notifmodels.ChannelSMS)),
		notification.WithSender(notification.NewInAppSender(feedPublisher)),
		notification.WithRetry(nc.MaxAttempts, nc.InitialBackoff, nc.MaxBackoff),
		notification.WithTimeout(nc.DispatchTimeout),
	)
	defer dispatcher.Wait()
	notifService, err := notification.NewService(notifStore, dispatcher, evaluator, auditor)
	if err != nil {
		return err
	}

	// Compliance scoring.
	complianceService, err := compliance.NewService(registryStore, shopTx, requiredTypes,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliancemetrics.New()),
		compliance.WithSequencer(compliance.NewSequencer(cfg.Compliance.RecomputeQueueSize)),
		compliance.WithAuthorizer(evaluator),
		compliance.WithNotifier(dispatcher),
		compliance.WithEventPublisher(bus),
		compliance.WithAuditor(auditor),
		compliance.WithSystemActor(systemActor),
	)
	if err != nil {
		return err
	}
	defer complianceService.Close()

	lifecycleService, err := lifecycle.NewService(registryStore, shopTx, evaluator,
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(lifecyclemetrics.New()),
		lifecycle.WithRateLimiter(limiter),
		lifecycle.WithScorer(complianceService),
		lifecycle.WithNotifier(dispatcher),
		lifecycle.WithEventPublisher(bus),
		lifecycle.WithAuditor(auditor),
	)
	if err != nil {
		return err
	}

	sweeper, err := sweep.New(registryStore, lifecycleService, systemActor,
		sweep.WithLogger(log),
		sweep.WithMetrics(sweepmetrics.New()),
		sweep.WithPruner(limiter),
		sweep.WithInterval(cfg.Sweep.Interval),
		sweep.WithPruneInterval(cfg.RateLimit.PruneInterval),
		sweep.WithWarningLead(cfg.Sweep.ExpiryWarningLead),
	)
	if err != nil {
		return err
	}
	if cfg.Sweep.Enabled {
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	adminService, err := admin.NewService(registryStore, evaluator,
		admin.WithLogger(log),
		admin.WithRecomputer(complianceService),
		admin.WithSweeper(sweeper),
		admin.WithNotifier(dispatcher),
		admin.WithAuditReader(auditPublisher),
		admin.WithAuditor(auditor),
	)
	if err != nil {
		return err
	}

	// HTTP surface.
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	router := newRouter(routerConfig{
		serviceKeyHash: []byte(cfg.Auth.ServiceKeyHash),
		serviceID:      systemID,
		tokens:         jwttoken.NewJWTServiceAdapter(jwtService),
		metrics:        httpmetrics.New(),
		logger:         log,
		checks:         in.checks(),
		handlers: []registrar{
			lifecyclehandler.New(lifecycleService, log),
			compliancehandler.New(complianceService, log),
			notificationhandler.New(notifService, log),
			feedhandler.New(broker, evaluator, log),
			adminhandler.New(adminService, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting govdash", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped cleanly")
	return nil
}
