package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aevon-lab/aevon-rollup/internal/broker/kafka"
	"github.com/aevon-lab/aevon-rollup/internal/bucket"
	"github.com/aevon-lab/aevon-rollup/internal/catalog"
	"github.com/aevon-lab/aevon-rollup/internal/config"
	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/storage/postgres"
	"github.com/aevon-lab/aevon-rollup/internal/core/storage/redis"
	"github.com/aevon-lab/aevon-rollup/internal/gapfill"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
	"github.com/aevon-lab/aevon-rollup/internal/migrations"
	"github.com/aevon-lab/aevon-rollup/internal/projection"
	"github.com/aevon-lab/aevon-rollup/internal/server"
)

// tableStore is a table cache that can also take writes.
type tableStore interface {
	bucket.TableCache
	bucket.Sink
}

func (a *app) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the bucket read API and run the gap-fill emitter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	needDB := cfg.Rollup.TableCache == config.CachePostgres || cfg.Heartbeat.Enabled

	var db *sql.DB
	if needDB || cfg.Database.DSN != "" {
		var err error
		if db, err = a.openDB(); err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		if err := postgres.ValidateSchema(ctx, db); err != nil {
			return err
		}
	}

	var store tableStore
	switch cfg.Rollup.TableCache {
	case config.CacheRedis:
		cache := redis.NewCacheFromAddrs(cfg.Redis.Addrs, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
		defer cache.Close()
		store = cache
	default:
		store = postgres.NewBucketAdapter(db)
	}

	var sink bucket.Sink = store
	if cfg.Kafka.Enabled {
		producer, err := kafka.Dial(cfg.Kafka.Brokers, kafka.NewConfig(cfg.Kafka.ClientID, cfg.Kafka.Timeout))
		if err != nil {
			return err
		}
		defer producer.Close()
		sink = producer
	}

	m := metrics.New()
	registry := bucket.NewRegistry()
	reader := bucket.NewReader(registry, store, m)
	writer := bucket.NewWriter(registry, sink)

	projectionSvc := projection.NewService(registry, reader, cfg.Specs...)
	catalogSvc := catalog.NewService(aggregation.NewMemorySpecRepository(cfg.Specs...), a.compiler())

	var health server.HealthChecker
	if db != nil {
		health = db
	}
	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), health, m.Handler(), cfg.Server.Mode, projectionSvc, catalogSvc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Heartbeat.Enabled {
		var targets []gapfill.Target
		for _, spec := range cfg.Specs {
			if t, ok := gapfill.TargetFromSpec(spec); ok {
				targets = append(targets, t)
			}
		}

		leader := postgres.NewLeaderAdapter(db, cfg.Heartbeat.Group)
		emitter := gapfill.NewEmitter(cfg.Heartbeat.Interval, reader, writer, leader, m, targets...)
		g.Go(func() error {
			defer func() {
				if err := leader.Release(context.Background()); err != nil {
					slog.Warn("[GapFill] Failed to release leadership", "error", err)
				}
			}()
			return emitter.Start(ctx)
		})
		slog.Info("[GapFill] Emitter enabled", "targets", len(targets), "interval", cfg.Heartbeat.Interval)
	} else {
		slog.Info("[GapFill] Emitter disabled by config")
	}

	err := g.Wait()
	slog.Info("Shutdown complete")
	return err
}
