// Package main is the entry point for TelemetryGate.
// TelemetryGate watches a landing zone for telemetry documents, checks that every
// record carries the required fields and routes each whole document either to
// staging (accepted) or to rejected (dead letter for manual review).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/router"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/sink"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/source"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/worker"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "telemetrygate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Logger.With(zap.String("service", cfg.Service.Name))

	metrics := obs.NewMetrics(cfg.Service.Name, nil)
	q := queue.NewQueue(cfg.Worker.QueueSize, metrics)

	schema := pipeline.TelemetrySchema()
	if cfg.Schema.Spelling == config.SpellingLegacy {
		schema = pipeline.LegacyTelemetrySchema()
	}
	log.Info("Schema loaded",
		zap.String("spelling", cfg.Schema.Spelling),
		zap.Strings("requiredFields", schema.Fields()),
	)

	staging, rejected, err := newSinks(cfg, log)
	if err != nil {
		return err
	}
	defer staging.Close()
	defer rejected.Close()

	rt, err := router.New(pipeline.NewGate(schema), staging, rejected, cfg.Retry, metrics, log)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	src, err := newSource(cfg, q, log)
	if err != nil {
		return err
	}

	pool, err := worker.NewPool(cfg.Worker.Count, q, rt, src, log)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsErr := make(chan error, 1)
	go func() {
		metricsErr <- obs.StartMetricsServer(ctx, cfg.Metrics.Port, nil, log)
	}()

	// Workers run on their own context so they can drain the queue after the
	// source stops.
	if err := pool.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	srcErr := make(chan error, 1)
	go func() { srcErr <- src.Start(ctx) }()

	var runErr error
	srcDone := false
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-srcErr:
		srcDone = true
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("source stopped: %w", err)
		}
	case err := <-metricsErr:
		runErr = err
	}
	stop()
	if !srcDone {
		<-srcErr
	}

	// Drain: no new documents, finish what is buffered, then flush commits.
	q.Close()
	pool.Wait()
	if err := pool.Stop(); err != nil {
		log.Error("Failed to stop worker pool", zap.Error(err))
	}
	if err := src.Close(); err != nil {
		log.Error("Failed to close source", zap.Error(err))
	}

	log.Info("TelemetryGate stopped")
	return runErr
}

func newSinks(cfg *config.Config, log *zap.Logger) (sink.Sink, sink.Sink, error) {
	switch cfg.Sink.Kind {
	case config.KindDir:
		staging, err := sink.NewDirSink(cfg.Sink.StagingDir, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create staging sink: %w", err)
		}
		rejected, err := sink.NewDirSink(cfg.Sink.RejectedDir, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create rejected sink: %w", err)
		}
		return staging, rejected, nil
	default:
		staging, err := sink.NewKafkaSink(cfg.Sink.Kafka.Brokers, cfg.Sink.StagingTopic, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create staging sink: %w", err)
		}
		rejected, err := sink.NewKafkaSink(cfg.Sink.Kafka.Brokers, cfg.Sink.RejectedTopic, log)
		if err != nil {
			staging.Close()
			return nil, nil, fmt.Errorf("failed to create rejected sink: %w", err)
		}
		return staging, rejected, nil
	}
}

func newSource(cfg *config.Config, q *queue.Queue, log *zap.Logger) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.KindDir:
		src, err := source.NewDirSource(cfg.Source.Dir, cfg.Source.PollInterval, q, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create landing directory source: %w", err)
		}
		return src, nil
	default:
		src, err := source.NewKafkaSource(cfg.Source.Kafka.Brokers, cfg.Source.Topic, cfg.Source.GroupID, q, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka source: %w", err)
		}
		return src, nil
	}
}
