// Package app assembles the runtime shared by the binaries: the repository
// backend, the Redis forecast cache, AWS clients, provider registry and the
// dispatch service. Each cmd/ main builds one Runtime and layers its own
// entry point (HTTP server, SQS consumer, seeder) on top.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"lawncare/internal/config"
	httpcore "lawncare/internal/core"
	"lawncare/internal/db"
	"lawncare/internal/external"
	"lawncare/internal/memstore"
	notifcore "lawncare/internal/notifications/core"
	"lawncare/internal/notifications/dispatch"
	"lawncare/internal/seed"
	"lawncare/internal/types"
)

// Runtime holds the long-lived dependencies of one process.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  types.Clock

	Repos   types.RepositoryRegistry
	Redis   *redis.Client
	Senders *external.Registry
	Metrics notifcore.NotificationMetrics
	Service *dispatch.Service

	// Publisher is nil when no notification queue is configured.
	Publisher *notifcore.JobPublisher

	Probes []httpcore.HealthProbe

	closers []func()
}

// Options tweaks Build for the calling binary.
type Options struct {
	// Seed writes the template catalog and env provider configs. Demo data
	// follows cfg.Storage.SeedDemoData and only applies to the memory driver.
	Seed bool
	// AWS overrides the SDK config. Nil loads the default chain, and only
	// when metrics or the queue are enabled.
	AWS *aws.Config
}

// Build opens storage and wires the dispatch service. On error everything
// opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{
		Config: cfg,
		Logger: logger,
		Clock:  types.RealClock{},
	}
	if err := rt.build(ctx, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, opts Options) error {
	cfg, logger := rt.Config, rt.Logger

	if err := rt.openStorage(ctx); err != nil {
		return err
	}
	rt.openRedis()

	awsCfg := opts.AWS
	if awsCfg == nil && (cfg.AWS.EnableMetrics || cfg.AWS.NotificationQueue != "") {
		loaded, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return err
		}
		awsCfg = &loaded
	}

	rt.Metrics = notifcore.NoopMetrics{}
	if cfg.AWS.EnableMetrics && awsCfg != nil {
		cw := cloudwatch.NewFromConfig(*awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		rt.Metrics = notifcore.NewCloudWatchNotificationMetrics(cw, cfg.AWS.MetricNamespace, NewLogger(logger))
	}
	if cfg.AWS.NotificationQueue != "" && awsCfg != nil {
		client := sqs.NewFromConfig(*awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		rt.Publisher = notifcore.NewJobPublisher(client, cfg.AWS.NotificationQueue, rt.Clock, NewLogger(logger))
	}

	rt.Senders = external.NewRegistryFromConfig(cfg, logger)
	rt.Service = dispatch.NewService(dispatch.Deps{
		Repos:        rt.Repos,
		Senders:      rt.Senders,
		Metrics:      rt.Metrics,
		Clock:        rt.Clock,
		Logger:       logger,
		CompanyName:  cfg.Company.Name,
		CompanyPhone: cfg.Company.Phone,
	})

	if opts.Seed {
		if err := rt.seed(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) openStorage(ctx context.Context) error {
	cfg := rt.Config
	if cfg.Storage.Driver != config.StoragePostgres {
		rt.Repos = memstore.New(rt.Clock)
		rt.Logger.Info("using in-memory storage")
		return nil
	}

	pool, err := db.Connect(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	rt.Repos = db.NewRegistry(pool)
	rt.Probes = append(rt.Probes, httpcore.NewProbe("database", pool.Ping))
	rt.Logger.Info("using postgres storage",
		"max_conns", cfg.Storage.MaxConns,
	)
	return nil
}

func (rt *Runtime) openRedis() {
	rc := rt.Config.Redis
	if rc.Addr == "" {
		return
	}
	rt.Redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password.Unmask(),
		DB:       rc.DB,
	})
	rt.closers = append(rt.closers, func() { _ = rt.Redis.Close() })
	rt.Probes = append(rt.Probes, httpcore.NewProbe("redis", func(ctx context.Context) error {
		return rt.Redis.Ping(ctx).Err()
	}))
}

func (rt *Runtime) seed(ctx context.Context) error {
	cfg := rt.Config
	stub := cfg.Providers.StubMode || cfg.Environment == "local"
	demo := cfg.Storage.Driver == config.StorageMemory && cfg.Storage.SeedDemoData

	res, err := seed.New(rt.Repos, rt.Clock, rt.Logger).All(ctx, cfg.Providers, stub, demo, seed.Options{})
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	rt.Logger.Info("seed complete",
		"templates", res.Templates,
		"providers", res.Providers,
		"appointments", res.Appointments,
	)
	return nil
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// LoadAWSConfig loads the SDK config for the configured region.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", cfg.Region, err)
	}
	return awsCfg, nil
}
