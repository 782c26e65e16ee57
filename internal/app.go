package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger_adapter "share-worker/internal/adapters/logger"
	metrics_adapter "share-worker/internal/adapters/metrics"
	postgres_adapter "share-worker/internal/adapters/postgres"
	rabbitmq_adapter "share-worker/internal/adapters/rabbitmq"
	"share-worker/internal/adapters/rest"
	"share-worker/internal/configs"
	"share-worker/internal/constants"
	"share-worker/internal/core/port"
	"share-worker/internal/core/usecase"
	fluentlogger "share-worker/pkg/fluent_logger"
	"share-worker/pkg/postgres"
	"share-worker/pkg/rabbitmq/rabbitmq_common"
	"share-worker/pkg/rabbitmq/rabbitmq_consumer"
	"share-worker/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config *configs.AppConfig

	dbPool              *pgxpool.Pool
	connManager         *rabbitmq_common.ConnectionManager
	shareEventsProducer *rabbitmq_producer.Publisher
	batchReportProducer *rabbitmq_producer.Publisher
	shareEventsListener port.EventListenerPort
	apiServer           *rest.Server

	fluentClient *fluent.Fluent
	logger       port.LoggerPort
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- loggers ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    logger_adapter.ParseLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.Format == "json",
		UseColor: appConfig.StdoutLogger.Format != "json",
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     true,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, logger_adapter.ParseLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	application := &App{
		config:       appConfig,
		fluentClient: fluentClient,
		logger:       appLogger,
	}
	if err := application.init(baseLogger); err != nil {
		application.closeResources()
		return nil, err
	}
	return application, nil
}

// init builds infrastructure, use cases and transports. Anything created before
// a failure is released by closeResources.
func (a *App) init(baseLogger port.LoggerPort) error {
	cfg := a.config
	ctx := context.Background()

	// --- store ---
	dbPool, err := postgres.NewClient(ctx, postgres.Config{
		DatabaseURL:     cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		a.logger.Error("Failed to connect to PostgreSQL", err, nil)
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.dbPool = dbPool
	a.logger.Info("Successfully connected to PostgreSQL pool!", nil)

	if cfg.Database.MigrateOnStart {
		if err := postgres_adapter.Migrate(ctx, dbPool); err != nil {
			a.logger.Error("Failed to apply migrations", err, nil)
			return err
		}
		a.logger.Info("Database migrations applied.", port.Fields{"table": cfg.Database.TableName})
	}

	retryPolicy := postgres_adapter.DefaultRetryPolicy
	retryPolicy.MaxRetries = uint64(max(cfg.Database.MaxRetries, 0))
	recordStore, err := postgres_adapter.NewRecordStoreAdapter(dbPool, cfg.Database.TableName, retryPolicy)
	if err != nil {
		return fmt.Errorf("failed to create record store adapter: %w", err)
	}

	// --- broker ---
	rmqLogger := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq"}))
	rmqCommon := rabbitmq_common.Config{URL: cfg.RabbitMQ.URL}

	connManager, err := rabbitmq_common.NewConnectionManager(rmqCommon, rmqLogger)
	if err != nil {
		a.logger.Error("Failed to connect to RabbitMQ", err, nil)
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	a.connManager = connManager

	producerCfg := rabbitmq_producer.PublisherConfig{
		Config:                   rmqCommon,
		ExchangeName:             constants.ShareExchange,
		ExchangeType:             constants.ShareExchangeType,
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rmqLogger,
	}
	shareEventsProducer, err := rabbitmq_producer.NewPublisher(producerCfg, connManager)
	if err != nil {
		return fmt.Errorf("failed to create share events producer: %w", err)
	}
	a.shareEventsProducer = shareEventsProducer

	batchReportProducer, err := rabbitmq_producer.NewPublisher(producerCfg, connManager)
	if err != nil {
		return fmt.Errorf("failed to create batch report producer: %w", err)
	}
	a.batchReportProducer = batchReportProducer

	shareEventPublisher, err := rabbitmq_adapter.NewShareEventPublisherAdapter(shareEventsProducer, constants.RoutingKeyShareEvents)
	if err != nil {
		return err
	}
	batchReporter, err := rabbitmq_adapter.NewBatchReportPublisherAdapter(batchReportProducer, constants.RoutingKeyBatchReport)
	if err != nil {
		return err
	}
	a.logger.Info("All persistence and messaging adapters initialized.", nil)

	// --- use cases ---
	metrics := metrics_adapter.NewLogMetricsAdapter(cfg.MetricsNamespace, cfg.AppName,
		baseLogger.WithFields(port.Fields{"component": "metrics"}))
	activityRecorder := usecase.NewRecordShareActivityUseCase(recordStore)
	processBatchUC := usecase.NewProcessShareBatchUseCase(recordStore, activityRecorder, metrics, usecase.BatchSettings{
		Concurrency: cfg.Batch.Concurrency,
		CallTimeout: cfg.Batch.StoreTimeout,
	})
	requestShareUC := usecase.NewRequestShareUseCase(recordStore, shareEventPublisher)

	// --- transports ---
	consumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:                 rmqCommon,
		QueueName:              constants.QueueShareEvents,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    constants.ShareExchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    constants.ShareExchangeType,
		DurableExchangeForBind: true,
		RoutingKeyForBind:      constants.RoutingKeyShareEvents,
		PrefetchCount:          cfg.Batch.Size * 2,
		ConsumerTag:            "share-events-batch-consumer",

		EnableRetryMechanism: true,
		RetryExchange:        constants.RetryExchange,
		RetryQueue:           constants.RetryQueue,
		RetryTTL:             int(cfg.Batch.RetryTTL.Milliseconds()),
		FinalDLXExchange:     constants.FinalDLXExchange,
		FinalDLQ:             constants.FinalDLQ,
		FinalDLQRoutingKey:   constants.FinalDLQRoutingKey,
		MaxRetries:           cfg.Batch.MaxRetries,
	}
	listener, err := rabbitmq_adapter.NewShareEventsConsumerAdapter(
		consumerCfg,
		rabbitmq_consumer.BatchOptions{
			Size:         cfg.Batch.Size,
			Timeout:      cfg.Batch.Timeout,
			DrainTimeout: cfg.Batch.DrainTimeout,
		},
		processBatchUC,
		batchReporter,
		baseLogger.WithFields(port.Fields{"component": "share_events_consumer"}),
		connManager,
	)
	if err != nil {
		a.logger.Error("Failed to create share events listener", err, nil)
		return err
	}
	a.shareEventsListener = listener

	a.apiServer = rest.NewServer(
		rest.ServerConfig{Port: cfg.Rest.PORT, AllowedOrigins: cfg.Rest.AllowedOrigins},
		rest.NewShareHandler(requestShareUC),
		rest.NewOpsHandler(recordStore, metrics),
		baseLogger,
	)
	a.logger.Info("REST API server configured.", nil)

	return nil
}

// Run starts the listener and the HTTP server and blocks until a signal or a
// component failure.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		// the listener settles its final batch before returning
		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		a.closeResources()
	}()

	a.logger.Info("Application is starting...", nil)

	componentErrors := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("Starting share events listener...", nil)
		if err := a.shareEventsListener.Start(appCtx); err != nil {
			a.logger.Error("Share events listener stopped with an unexpected error", err, nil)
			componentErrors <- fmt.Errorf("share events listener error: %w", err)
			return
		}
		a.logger.Info("Share events listener stopped gracefully.", nil)
	}()

	go func() {
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			componentErrors <- fmt.Errorf("http server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-componentErrors:
		a.logger.Error("A critical component failed, shutting down", err, nil)
		runErr = err
	}

	cancelApp()

	return runErr
}

// closeResources releases everything in reverse order of creation. Safe on a
// partially initialized App.
func (a *App) closeResources() {
	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}
		cancel()
	}

	if a.shareEventsListener != nil {
		if err := a.shareEventsListener.Close(); err != nil {
			a.logger.Error("Error closing share events listener", err, nil)
		}
	}

	for name, producer := range map[string]*rabbitmq_producer.Publisher{
		"share_events": a.shareEventsProducer,
		"batch_report": a.batchReportProducer,
	} {
		if producer == nil {
			continue
		}
		if err := producer.Close(); err != nil {
			a.logger.Error("Error closing producer", err, port.Fields{"producer": name})
		}
	}

	if a.connManager != nil {
		if err := a.connManager.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
		}
	}

	if a.dbPool != nil {
		a.dbPool.Close()
		a.logger.Info("PostgreSQL pool closed.", nil)
	}

	a.logger.Info("Application shut down gracefully.", nil)

	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			// fluent may already be unreachable
			fmt.Fprintf(os.Stderr, "ERROR: Error closing fluent client: %v\n", err)
		}
	}
}
