// Command api runs the warehouse logistics service: the REST API, the
// scheduled outbox drains and the administrative trigger.
package main

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/config"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/app"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/sink/catalog"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/sink/email"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/sink/statistics"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/sink/storagesys"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/storage/postgres"
	httptransport "github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/transport/http"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/cron"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/zaplog"
	"go.opentelemetry.io/otel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	logger, err := zaplog.New(level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer logger.Sync(context.Background()) //nolint:errcheck

	conn := &postgres.Connection{
		ConnectionStringPrimary: cfg.Postgres.PrimaryDSN,
		ConnectionStringReplica: cfg.Postgres.ReplicaDSN,
		DatabaseName:            cfg.Postgres.DatabaseName,
		MigrationsPath:          cfg.Postgres.MigrationsPath,
		Logger:                  logger,
		MaxOpenConnections:      cfg.Postgres.MaxOpenConns,
		MaxIdleConnections:      cfg.Postgres.MaxIdleConns,
	}

	if err := conn.Connect(ctx); err != nil {
		return err
	}

	defer conn.Close()

	orderRepo, err := postgres.NewOrderRepository(conn)
	if err != nil {
		return err
	}

	itemRepo, err := postgres.NewItemRepository(conn)
	if err != nil {
		return err
	}

	store, err := postgres.NewOutboxStore(conn)
	if err != nil {
		return err
	}

	orderService, err := app.NewOrderService(orderRepo, store, conn, logger)
	if err != nil {
		return err
	}

	itemService, err := app.NewItemService(itemRepo, store, conn, logger)
	if err != nil {
		return err
	}

	registry, closeSinks, err := buildProcessors(cfg, store, logger)
	if err != nil {
		return err
	}

	defer closeSinks()

	runner, err := buildScheduler(cfg, registry, logger)
	if err != nil {
		return err
	}

	go runner.Run(ctx)

	server, err := httptransport.NewServer(
		cfg.HTTPServer.Addr,
		httptransport.NewOrderHandler(orderService),
		httptransport.NewItemHandler(itemService),
		httptransport.NewAdminHandler(registry, store),
		logger,
	)
	if err != nil {
		return err
	}

	return server.Listen(ctx)
}

func buildProcessors(cfg *config.Config, store outbox.Store, logger log.Logger) (*outbox.Registry, func(), error) {
	storageSink, err := storagesys.NewClient(cfg.Storage.BaseURL,
		storagesys.WithAPIKey(cfg.Storage.APIKey),
		storagesys.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	catalogSink, err := catalog.NewNotifier(cfg.Catalog.BaseURL, catalog.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	emailOpts := []email.Option{email.WithLogger(logger)}
	if cfg.SMTP.Username != "" {
		emailOpts = append(emailOpts,
			email.WithAuth(smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)))
	}

	emailSink, err := email.NewSender(cfg.SMTP.Addr, cfg.SMTP.From, emailOpts...)
	if err != nil {
		return nil, nil, err
	}

	amqpConn, amqpCh, err := statistics.Connect(cfg.AMQP.URI, cfg.AMQP.Exchange)
	if err != nil {
		return nil, nil, err
	}

	statisticsSink, err := statistics.NewPublisher(amqpCh, cfg.AMQP.Exchange, statistics.WithLogger(logger))
	if err != nil {
		amqpConn.Close()

		return nil, nil, err
	}

	closeSinks := func() {
		statisticsSink.Close() //nolint:errcheck
		amqpConn.Close()
	}

	processorCfg := outbox.ProcessorConfig{
		BatchSize:          cfg.Outbox.BatchSize,
		DispatchTimeout:    cfg.Outbox.DispatchTimeout,
		PublishMaxAttempts: cfg.Outbox.PublishMaxAttempts,
		PublishBackoff:     cfg.Outbox.PublishBackoff,
		MaxRecordAttempts:  cfg.Outbox.MaxRecordAttempts,
	}

	registry := outbox.NewRegistry()
	tracer := otel.Tracer("outbox")

	sinks := map[outbox.Category]outbox.Sink{
		outbox.CategoryCatalog:    catalogSink,
		outbox.CategoryStorage:    storageSink,
		outbox.CategoryEmail:      emailSink,
		outbox.CategoryStatistics: statisticsSink,
	}

	for category, sink := range sinks {
		processor, err := outbox.NewProcessor(category, outbox.DefaultKinds(category), store, sink,
			outbox.WithLogger(logger),
			outbox.WithTracer(tracer),
			outbox.WithConfig(processorCfg),
		)
		if err != nil {
			closeSinks()

			return nil, nil, err
		}

		if err := registry.Register(processor); err != nil {
			closeSinks()

			return nil, nil, err
		}
	}

	return registry, closeSinks, nil
}

func buildScheduler(cfg *config.Config, registry *outbox.Registry, logger log.Logger) (*cron.Runner, error) {
	runner := cron.NewRunner(logger)

	schedules := map[outbox.Category]string{
		outbox.CategoryCatalog:    cfg.Schedule.Catalog,
		outbox.CategoryStorage:    cfg.Schedule.Storage,
		outbox.CategoryEmail:      cfg.Schedule.Email,
		outbox.CategoryStatistics: cfg.Schedule.Statistics,
	}

	for category, expr := range schedules {
		schedule, err := cron.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("parse %s drain schedule: %w", category, err)
		}

		drainCategory := category

		runner.Add("drain-"+string(category), schedule, func(ctx context.Context) {
			if _, err := registry.Drain(ctx, drainCategory); err != nil {
				logger.Log(ctx, log.LevelError, "scheduled drain failed",
					log.String("category", string(drainCategory)), log.Err(err))
			}
		})
	}

	return runner, nil
}
