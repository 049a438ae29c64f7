package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/analysis"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/config"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/graphdb"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/logging"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/metrics"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/repository"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/server"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/service"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/sink"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	var (
		reg          *prometheus.Registry
		runMetrics   *metrics.Metrics
		metricsRoute http.Handler
	)
	if cfg.HTTP.MetricsEnabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		runMetrics = metrics.New(reg)
		metricsRoute = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	engine, err := analysis.NewEngine(analysis.Options{
		Detect:  &cfg.Detect,
		Logger:  logger,
		Metrics: runMetrics,
	})
	if err != nil {
		logger.Error("failed to create analysis engine", "error", err)
		os.Exit(1)
	}

	var graphClient graphdb.Client
	if cfg.Graph.ExportEnabled {
		graphClient, err = buildGraphClient(ctx, cfg)
		if err != nil {
			logger.Error("failed to create graph client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()
	}

	sinks, err := buildSinks(cfg, graphClient)
	if err != nil {
		logger.Error("failed to create report sinks", "error", err)
		os.Exit(1)
	}
	publisher := sink.NewFanout(logger, sinks...)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("closing report sinks failed", "error", err)
		}
	}()
	logger.Info("report sinks configured", "sinks", publisher.Names())

	analysisService := service.NewAnalysisService(engine, publisher, logger)

	readiness := server.Readiness{
		Detectors: engine.Detectors(),
		Sinks:     publisher.Names(),
	}
	if graphClient != nil {
		readiness.Checks = append(readiness.Checks, server.GraphCheck(graphClient))
	}
	router := server.NewRouter(logger, server.RouterDependencies{
		Readiness:        readiness,
		Analyze:          server.NewAnalyzeHandler(logger, analysisService, cfg.Analyze),
		Metrics:          metricsRoute,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, cfg.Analyze, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graphdb.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graphdb.ErrMissingURI
	}

	opts := graphdb.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return graphdb.NewNeo4jClient(ctx, opts)
}

func buildSinks(cfg config.Config, graphClient graphdb.Client) ([]sink.Sink, error) {
	var sinks []sink.Sink
	if graphClient != nil {
		sinks = append(sinks, sink.NewGraphExportSink(repository.New(graphClient)))
	}
	if cfg.Kafka.Enabled() {
		kafka, err := sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		sinks = append(sinks, kafka)
	}
	return sinks, nil
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

