package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"bestiary/internal/audit"
	"bestiary/internal/issuance/adapters/httprpc"
	"bestiary/internal/issuance/handler"
	issuancemetrics "bestiary/internal/issuance/metrics"
	"bestiary/internal/issuance/service"
	recordstore "bestiary/internal/issuance/store/record"
	statestore "bestiary/internal/issuance/store/state"
	"bestiary/internal/platform/config"
	"bestiary/internal/platform/httpserver"
	"bestiary/internal/platform/logger"
	platformredis "bestiary/internal/platform/redis"
	"bestiary/internal/pricing"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the issuance service.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		records    service.RecordStore
		state      service.StateStore
		auditStore audit.Store
		outbox     *audit.PostgresStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		for _, schema := range []string{recordstore.Schema, statestore.Schema, audit.Schema} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return err
			}
		}
		records = recordstore.NewPostgres(db)
		state = statestore.NewPostgres(db)
		outbox = audit.NewPostgresStore(db)
		auditStore = outbox
	} else {
		log.Warn("DATABASE_URL not set; running on in-memory stores")
		records = recordstore.NewInMemory()
		state = statestore.NewInMemory(statestore.State{})
		auditStore = audit.NewInMemoryStore()
	}

	// Price oracle, optionally behind the Redis quote cache.
	var oracle pricing.Oracle = httprpc.NewPriceOracle(cfg.PriceOracleURL)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		oracle = pricing.NewCachedOracle(oracle, redisClient.Client, cfg.QuoteCacheTTL)
	}

	collab := service.Collaborators{
		Beacon:   httprpc.NewBeacon(cfg.BeaconURL),
		Oracle:   oracle,
		Renderer: httprpc.NewRenderer(cfg.RendererURL),
		Registry: httprpc.NewRegistry(cfg.RegistryURL),
		Chain:    httprpc.NewChain(cfg.ChainURL),
	}

	svc, err := service.New(ctx, state, records, collab,
		service.Params{CohortID: cfg.CohortID, QuotePair: cfg.QuotePair},
		service.WithLogger(log),
		service.WithAuditPublisher(audit.NewPublisher(auditStore)),
		service.WithMetrics(issuancemetrics.New()),
	)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	handler.New(svc, svc, svc, []byte(cfg.OwnerJWTKey), log).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting bestiary", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Audit relay: drain the Postgres outbox into Kafka when both exist.
	if len(cfg.KafkaBrokers) > 0 && outbox != nil {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.AuditTopic),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		relay := audit.NewRelay(outbox, kafkaClient, log)
		group.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return group.Wait()
}
