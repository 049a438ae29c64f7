package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when the input holds a header but no rows.
	ErrEmptyDataset = errors.New("dataset contains no transactions")
	// ErrMissingColumn is returned when a required CSV column is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// RowError describes why one input row was rejected. Row is 1-based and
// counts data rows only.
type RowError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// maxRowErrors bounds how many row errors are reported for one input.
const maxRowErrors = 20
