package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xraph/tally/api"
	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/audit_hook/kafkasink"
	"github.com/xraph/tally/extension"
	"github.com/xraph/tally/internal/config"
	"github.com/xraph/tally/internal/logger"
	"github.com/xraph/tally/observability"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
	mongostore "github.com/xraph/tally/store/mongo"
	"github.com/xraph/tally/store/postgres"
	"github.com/xraph/tally/store/sqlite"
	"github.com/xraph/tally/watch"
	"github.com/xraph/tally/watch/redisbus"
)

// service is a configured tally service plus the resources it does not own.
type service struct {
	*extension.Extension
	closers []func() error
}

// Close stops the service and releases the bus client and the audit sink.
func (s *service) Close(ctx context.Context) error {
	errs := []error{s.Stop(ctx)}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func newService(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*service, error) {
	slogger := logger.Slog(zlog, "tally")
	svc := &service{}

	st, err := openStore(ctx, cfg, zlog)
	if err != nil {
		return nil, err
	}

	opts := []extension.Option{
		extension.WithConfig(cfg.Tally),
		extension.WithStore(st),
		extension.WithLogger(slogger),
		extension.WithAPIOption(api.WithLogger(zlog.Named("http"))),
		extension.WithAPIOption(api.WithGatherer(prometheus.DefaultGatherer)),
		extension.WithPlugin(observability.NewMetricsExtension(
			observability.NewPrometheusFactory(prometheus.DefaultRegisterer),
		)),
	}

	bus, closeBus, err := openBus(ctx, cfg.Bus, slogger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if bus != nil {
		opts = append(opts, extension.WithBus(bus))
		svc.closers = append(svc.closers, closeBus)
	}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		sink := kafkasink.New(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		opts = append(opts, extension.WithPlugin(audithook.New(sink, audithook.WithLogger(slogger))))
		svc.closers = append(svc.closers, sink.Close)
		zlog.Info("audit trail enabled",
			zap.Strings("brokers", cfg.Audit.KafkaBrokers),
			zap.String("topic", cfg.Audit.KafkaTopic),
		)
	}

	svc.Extension = extension.New(opts...)
	return svc, nil
}

func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (store.Store, error) {
	gormLog := logger.NewGormLogger(zlog, logger.GormLevel(cfg.Log.Level))

	switch cfg.Store.Driver {
	case config.DriverMemory:
		zlog.Warn("using the in-memory store; data is lost on exit")
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.Store.DSN, sqlite.WithLogger(gormLog))
	case config.DriverPostgres:
		return postgres.Open(cfg.Store.DSN, postgres.WithLogger(gormLog))
	case config.DriverMongo:
		return mongostore.Open(ctx, cfg.Store.DSN, cfg.Store.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openBus returns nil for the in-process hub, which the service builds
// itself.
func openBus(ctx context.Context, cfg config.BusConfig, slogger *slog.Logger) (watch.Bus, func() error, error) {
	if cfg.Driver != config.BusRedis {
		return nil, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	slogger.Info("change feed on redis", "addr", cfg.RedisAddr, "prefix", cfg.Prefix)

	bus := redisbus.New(rdb,
		redisbus.WithPrefix(cfg.Prefix),
		redisbus.WithLogger(slogger),
	)
	return bus, rdb.Close, nil
}
