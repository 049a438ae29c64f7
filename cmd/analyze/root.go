package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/analysis"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/config"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/graphdb"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/ingest"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/logging"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/repository"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/service"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/sink"
)

const (
	sourceFile  = "file"
	sourceNeo4j = "neo4j"
)

type options struct {
	source  string
	output  string
	since   string
	until   string
	limit   int
	workers int
	publish bool
	indent  bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Detect money-muling rings in transaction datasets",
		Long: `Builds the transaction graph for each dataset, runs the cycle, fan-in/fan-out
and shell-chain detectors and writes the scored report as JSON.

Datasets are CSV (or JSON when the file ends in .json). With --source neo4j the
transactions stored in the configured graph database are analyzed instead.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.source, "source", sourceFile, "transaction source: file or neo4j")
	flags.StringVarP(&opts.output, "output", "o", "-", "report path, '-' for stdout; a directory when several files are given")
	flags.StringVar(&opts.since, "since", "", "neo4j source: only transactions at or after this time")
	flags.StringVar(&opts.until, "until", "", "neo4j source: only transactions before this time")
	flags.IntVar(&opts.limit, "limit", 0, "neo4j source: maximum transactions to load (0 = all)")
	flags.IntVar(&opts.workers, "workers", 4, "datasets analyzed concurrently")
	flags.BoolVar(&opts.publish, "publish", false, "also deliver reports to the configured Kafka and graph sinks")
	flags.BoolVar(&opts.indent, "indent", true, "indent the JSON report")

	return cmd
}

func run(ctx context.Context, stdout io.Writer, opts options, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging).With("component", "analyze")

	engine, err := analysis.NewEngine(analysis.Options{Detect: &cfg.Detect, Logger: logger})
	if err != nil {
		return err
	}

	var graphClient graphdb.Client
	if opts.source == sourceNeo4j || (opts.publish && cfg.Graph.ExportEnabled) {
		graphClient, err = graphdb.NewNeo4jClient(ctx, graphdb.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return fmt.Errorf("connect graph: %w", err)
		}
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()
	}

	var publisher service.Publisher
	if opts.publish {
		fanout, err := buildPublisher(cfg, graphClient, logger)
		if err != nil {
			return err
		}
		defer fanout.Close()
		publisher = fanout
	}
	svc := service.NewAnalysisService(engine, publisher, logger)

	switch opts.source {
	case sourceNeo4j:
		if len(args) > 0 {
			return errors.New("file arguments cannot be combined with --source neo4j")
		}
		loadOpts, err := opts.loadOptions()
		if err != nil {
			return err
		}
		doc, err := svc.AnalyzeSource(ctx, repository.New(graphClient), loadOpts)
		if err != nil {
			return err
		}
		return writeReport(stdout, opts.output, doc, opts.indent)
	case sourceFile:
		return analyzeFiles(ctx, stdout, svc, opts, args, logger)
	default:
		return fmt.Errorf("unknown source %q", opts.source)
	}
}

func analyzeFiles(ctx context.Context, stdout io.Writer, svc *service.AnalysisService, opts options, paths []string, logger *slog.Logger) error {
	if len(paths) == 0 {
		return errors.New("at least one dataset file is required")
	}
	if len(paths) == 1 {
		txs, err := ingest.ReadFile(paths[0])
		if err != nil {
			return err
		}
		doc, err := svc.Analyze(ctx, txs)
		if err != nil {
			return err
		}
		return writeReport(stdout, opts.output, doc, opts.indent)
	}

	if opts.output == "-" {
		return errors.New("--output must name a directory when several files are given")
	}
	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	start := time.Now()
	results, batchErr := service.NewBatchAnalyzer(svc, opts.workers).AnalyzeFiles(ctx, paths)
	written := 0
	for _, res := range results {
		if res.Err != nil {
			logger.Error("dataset failed", "path", res.Path, "error", res.Err)
			continue
		}
		target := filepath.Join(opts.output, reportName(res.Path))
		if err := writeReport(stdout, target, res.Document, opts.indent); err != nil {
			return err
		}
		written++
		logger.Info("report written", "path", target, "rings", res.Document.Summary.FraudRingsDetected)
	}
	logger.Info("batch complete", "datasets", len(paths), "reports", written, "duration", time.Since(start).String())
	return batchErr
}

func buildPublisher(cfg config.Config, graphClient graphdb.Client, logger *slog.Logger) (*sink.Fanout, error) {
	var sinks []sink.Sink
	if graphClient != nil && cfg.Graph.ExportEnabled {
		sinks = append(sinks, sink.NewGraphExportSink(repository.New(graphClient)))
	}
	if cfg.Kafka.Enabled() {
		kafka, err := sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		sinks = append(sinks, kafka)
	}
	if len(sinks) == 0 {
		return nil, errors.New("--publish needs KAFKA_BROKERS or GRAPH_EXPORT_ENABLED")
	}
	return sink.NewFanout(logger, sinks...), nil
}

func (o options) loadOptions() (repository.LoadOptions, error) {
	lo := repository.LoadOptions{Limit: o.limit}
	if o.since != "" {
		t, err := ingest.ParseTimestamp(o.since)
		if err != nil {
			return lo, fmt.Errorf("--since: %w", err)
		}
		lo.Since = &t
	}
	if o.until != "" {
		t, err := ingest.ParseTimestamp(o.until)
		if err != nil {
			return lo, fmt.Errorf("--until: %w", err)
		}
		lo.Until = &t
	}
	return lo, nil
}

func reportName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".report.json"
}

func writeReport(stdout io.Writer, target string, doc report.Document, indent bool) error {
	prefix := ""
	if indent {
		prefix = "  "
	}
	if target == "-" {
		return report.Encode(stdout, doc, prefix)
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.Encode(f, doc, prefix); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
