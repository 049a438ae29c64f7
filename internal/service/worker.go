package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/ingest"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
)

// TaskError accumulates the failures of a batch run.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) Unwrap() []error { return e.Errors }

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// BatchResult is the outcome for one dataset of a batch.
type BatchResult struct {
	Path     string
	Document report.Document
	Err      error
}

// BatchAnalyzer analyzes many datasets with a bounded worker pool. Each
// dataset is an independent run.
type BatchAnalyzer struct {
	service *AnalysisService
	workers int
}

// NewBatchAnalyzer creates a BatchAnalyzer with the provided concurrency.
func NewBatchAnalyzer(service *AnalysisService, workers int) *BatchAnalyzer {
	if workers <= 0 {
		workers = 4
	}
	return &BatchAnalyzer{service: service, workers: workers}
}

// AnalyzeFiles analyzes every path. Results keep the order of paths; the
// returned error aggregates per-file failures in a *TaskError.
func (ba *BatchAnalyzer) AnalyzeFiles(ctx context.Context, paths []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(paths))
	err := ba.run(ctx, len(paths), func(idx int) error {
		path := paths[idx]
		results[idx].Path = path
		txs, err := ingest.ReadFile(path)
		if err != nil {
			results[idx].Err = &InputError{Err: err}
			return results[idx].Err
		}
		doc, err := ba.service.Analyze(ctx, txs)
		if err != nil {
			results[idx].Err = fmt.Errorf("%s: %w", path, err)
			return results[idx].Err
		}
		results[idx].Document = doc
		return nil
	})
	return results, err
}

func (ba *BatchAnalyzer) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				errCh <- err
			}
		}
	}

	for i := 0; i < min(ba.workers, total); i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
