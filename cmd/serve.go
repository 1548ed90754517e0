package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smartgarden/gardend/internal/alerting"
	"github.com/smartgarden/gardend/internal/api"
	apiv2 "github.com/smartgarden/gardend/internal/api/v2"
	"github.com/smartgarden/gardend/internal/calibration"
	"github.com/smartgarden/gardend/internal/conf"
	datastore "github.com/smartgarden/gardend/internal/datastore/v2"
	"github.com/smartgarden/gardend/internal/ingest"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/mqtt"
	"github.com/smartgarden/gardend/internal/notification"
	"github.com/smartgarden/gardend/internal/observability"
	"github.com/smartgarden/gardend/internal/trends"
	"github.com/smartgarden/gardend/internal/watering"
)

const (
	shutdownTimeout    = 15 * time.Second
	sentryFlushTimeout = 2 * time.Second
	mqttStartTimeout   = 30 * time.Second
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the MQTT telemetry subscriber",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, log, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, settings, log)
		},
	}
}

func openDatabase(settings *conf.Settings) (*datastore.Manager, error) {
	return datastore.NewManager(datastore.Config{
		Type:         settings.Database.Type,
		Path:         settings.Database.Path,
		DSN:          settings.Database.DSN,
		MaxOpenConns: settings.Database.MaxOpenConns,
		Debug:        settings.Database.Debug,
	})
}

func serve(ctx context.Context, settings *conf.Settings, log logger.Logger) error {
	if enabled, err := observability.InitSentry(settings.Sentry, Version); err != nil {
		log.Warn("sentry disabled", logger.Error(err))
	} else if enabled {
		defer observability.FlushSentry(sentryFlushTimeout)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	manager, err := openDatabase(settings)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()
	if err := manager.Initialize(); err != nil {
		return err
	}
	store := manager.Store()

	resolver := calibration.NewResolver(store.Sensors, store.Plants, log)
	dispatcher := notification.NewDefaultDispatcher(settings.Notification, log, metrics)
	engine := alerting.Initialize(store, resolver, dispatcher, settings.Alerting, metrics, log)
	defer engine.Stop()

	wateringSvc := watering.NewService(store.Watering, log, watering.WithMetrics(metrics))
	ingester := ingest.NewService(store, wateringSvc, engine, log, ingest.WithMetrics(metrics))

	server := api.NewServer(settings.Server, apiv2.Dependencies{
		Store:    store,
		Ingest:   ingester,
		Alerts:   engine,
		Watering: wateringSvc,
		Trends:   trends.NewAggregator(store.Readings, nil),
		Notifier: dispatcher,
		Metrics:  metrics,
		Ping:     manager.Ping,
	}, log)

	var subscriber *mqtt.Subscriber
	if settings.MQTT.Enabled {
		subscriber = mqtt.NewSubscriber(settings.MQTT, ingester, metrics, log)
		startCtx, cancel := context.WithTimeout(ctx, mqttStartTimeout)
		err := subscriber.Start(startCtx)
		cancel()
		if err != nil {
			return err
		}
		defer subscriber.Stop()
	}

	log.Info("gardend started",
		logger.String("version", Version),
		logger.String("database", manager.Dialect()),
		logger.Bool("mqtt", subscriber != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
