// Package detect implements the rule-based laundering pattern detectors:
// circular routing, fan-in/fan-out aggregation and layered shell chains.
package detect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

// Detector finds one family of patterns. Implementations only read the
// store and only write tags through the aggregate tracker, so independent
// detectors may run concurrently over the same inputs.
type Detector interface {
	Name() string
	Detect(ctx context.Context, g *txgraph.Store, aggs *txgraph.Aggregates) ([]domain.Ring, error)
}

// All returns the three detectors in the order their rings are reported.
func All(cfg Config, logger *slog.Logger) []Detector {
	return []Detector{
		NewCycleDetector(cfg, logger),
		NewFanDetector(cfg, logger),
		NewShellDetector(cfg, logger),
	}
}

// ringIDs hands out sequential ids within one detector's namespace.
type ringIDs struct {
	prefix string
	next   int
}

func (r *ringIDs) allocate() string {
	r.next++
	return fmt.Sprintf("RING_%s_%03d", r.prefix, r.next)
}

func nopLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
