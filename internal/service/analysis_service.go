// Package service orchestrates one analysis end to end: decode the input,
// run the detection engine, render the report and hand it to the sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/ingest"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/repository"
)

// ErrNoTransactions is returned when a source yields no transactions.
var ErrNoTransactions = errors.New("no transactions to analyze")

// Engine runs the detection pipeline.
type Engine interface {
	Run(ctx context.Context, txs []domain.Transaction) (domain.Analysis, error)
}

// Publisher receives every finished report.
type Publisher interface {
	Publish(ctx context.Context, doc report.Document) error
}

// TransactionSource loads stored transactions, typically the graph repository.
type TransactionSource interface {
	LoadTransactions(ctx context.Context, opts repository.LoadOptions) ([]domain.Transaction, error)
}

// InputError marks a failure caused by the caller's data rather than the
// service, so transports can map it to a client error.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return "invalid input: " + e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

// AnalysisService is safe for concurrent use.
type AnalysisService struct {
	engine    Engine
	publisher Publisher
	logger    *slog.Logger
}

// NewAnalysisService wires the engine to an optional publisher.
func NewAnalysisService(engine Engine, publisher Publisher, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AnalysisService{engine: engine, publisher: publisher, logger: logger.With("component", "analysis_service")}
}

// AnalyzeReader decodes r in the given format and analyzes it.
func (s *AnalysisService) AnalyzeReader(ctx context.Context, r io.Reader, format ingest.Format) (report.Document, error) {
	txs, err := ingest.Read(r, format)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyDataset) {
			return report.Document{}, &InputError{Err: ErrNoTransactions}
		}
		return report.Document{}, &InputError{Err: err}
	}
	return s.Analyze(ctx, txs)
}

// AnalyzeSource loads transactions from src and analyzes them.
func (s *AnalysisService) AnalyzeSource(ctx context.Context, src TransactionSource, opts repository.LoadOptions) (report.Document, error) {
	txs, err := src.LoadTransactions(ctx, opts)
	if err != nil {
		return report.Document{}, fmt.Errorf("load transactions: %w", err)
	}
	return s.Analyze(ctx, txs)
}

// Analyze runs the engine over txs and publishes the report. Publishing
// failures are logged and never fail the analysis.
func (s *AnalysisService) Analyze(ctx context.Context, txs []domain.Transaction) (report.Document, error) {
	if len(txs) == 0 {
		return report.Document{}, &InputError{Err: ErrNoTransactions}
	}

	result, err := s.engine.Run(ctx, txs)
	if err != nil {
		return report.Document{}, fmt.Errorf("run analysis: %w", err)
	}
	doc := report.FromAnalysis(result)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, doc); err != nil {
			s.logger.Warn("report publishing incomplete", "run_id", doc.RunID, "error", err)
		}
	}
	return doc, nil
}
