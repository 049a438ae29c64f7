package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/config"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/generator"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/graphdb"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/ingest"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/logging"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/repository"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		accounts     = flag.Int("accounts", cfg.NumAccounts, "number of background accounts")
		transactions = flag.Int("transactions", cfg.NumTransactions, "number of background transactions")
		cycles       = flag.Int("cycles", cfg.Cycles, "cycle rings to plant")
		fanHubs      = flag.Int("fan-hubs", cfg.FanHubs, "fan-in/fan-out hubs to plant")
		shellChains  = flag.Int("shell-chains", cfg.ShellChains, "shell chains to plant")
		payroll      = flag.Int("payroll", cfg.PayrollBatches, "legitimate payroll batches to plant as decoys")
		start        = flag.String("start", cfg.Start.Format(time.DateOnly), "first day of generated traffic")
		days         = flag.Int("days", int(cfg.Span/(24*time.Hour)), "days of traffic to generate")
		seed         = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir    = flag.String("output-dir", "data", "directory to write transactions.csv and planted.json")
		writeStdout  = flag.Bool("stdout", false, "write the transactions CSV to stdout instead of files")
		pushNeo4j    = flag.Bool("neo4j", false, "also load the transactions into the configured graph database")
	)
	flag.Parse()

	startAt, err := ingest.ParseTimestamp(*start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start: %v\n", err)
		os.Exit(1)
	}

	genCfg := generator.Config{
		NumAccounts:     *accounts,
		NumTransactions: *transactions,
		Cycles:          *cycles,
		FanHubs:         *fanHubs,
		ShellChains:     *shellChains,
		PayrollBatches:  *payroll,
		Start:           startAt,
		Span:            time.Duration(*days) * 24 * time.Hour,
		Seed:            *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := generator.WriteCSV(os.Stdout, dataset.Transactions); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := generator.WriteDataset(dataset, *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Generated %d transactions with %d planted patterns into %s\n", len(dataset.Transactions), len(dataset.Planted), *outputDir)
	}

	if *pushNeo4j {
		if err := pushToGraph(ctx, dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load graph: %v\n", err)
			os.Exit(1)
		}
	}
}

func pushToGraph(ctx context.Context, dataset generator.Dataset) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging).With("component", "datagen")

	client, err := graphdb.NewNeo4jClient(ctx, graphdb.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	start := time.Now()
	if err := repository.New(client).UpsertTransactions(ctx, dataset.Transactions); err != nil {
		return err
	}
	logger.Info("transactions loaded", "count", len(dataset.Transactions), "duration", time.Since(start).String())
	return nil
}
