// Package sink delivers finished analysis reports to downstream systems.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
)

// Sink publishes a report somewhere outside the process.
type Sink interface {
	Name() string
	Publish(ctx context.Context, doc report.Document) error
	Close() error
}

// PublishError accumulates the failures of a fan-out publish.
type PublishError struct {
	Errors []error
}

func (e *PublishError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "multiple sink errors: " + strings.Join(msgs, "; ")
}

func (e *PublishError) Unwrap() []error { return e.Errors }

func (e *PublishError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *PublishError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Fanout publishes to every sink concurrently. A failing sink does not stop
// the others.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout wraps sinks. Nil entries are skipped.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := &Fanout{logger: logger.With("component", "sink")}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Len reports the number of configured sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Names lists the configured sinks in order.
func (f *Fanout) Names() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Publish returns a *PublishError naming every sink that failed.
func (f *Fanout) Publish(ctx context.Context, doc report.Document) error {
	if len(f.sinks) == 0 {
		return nil
	}
	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, s := range f.sinks {
		g.Go(func() error {
			if err := s.Publish(ctx, doc); err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				f.logger.Warn("publish failed", "sink", s.Name(), "run_id", doc.RunID, "error", err)
				return nil
			}
			f.logger.Debug("report published", "sink", s.Name(), "run_id", doc.RunID)
			return nil
		})
	}
	_ = g.Wait()

	var pubErr PublishError
	for _, err := range errs {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		pubErr.append(err)
	}
	return pubErr.asError()
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
