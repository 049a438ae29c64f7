package sink

import (
	"context"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
)

// CaseStore persists the cases of one analysis run.
type CaseStore interface {
	SaveCases(ctx context.Context, doc report.Document) error
}

// GraphExportSink writes rings and flagged accounts to the graph database.
type GraphExportSink struct {
	store CaseStore
}

// NewGraphExportSink wraps store, typically a *repository.Repository.
func NewGraphExportSink(store CaseStore) *GraphExportSink {
	return &GraphExportSink{store: store}
}

func (s *GraphExportSink) Name() string { return "graph_export" }

func (s *GraphExportSink) Publish(ctx context.Context, doc report.Document) error {
	return s.store.SaveCases(ctx, doc)
}

// Close is a no-op; the graph client is owned by the caller.
func (s *GraphExportSink) Close() error { return nil }
