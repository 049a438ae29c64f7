package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

const (
	colTransactionID = "transaction_id"
	colSender        = "sender_id"
	colReceiver      = "receiver_id"
	colAmount        = "amount"
	colTimestamp     = "timestamp"
)

var requiredColumns = []string{colSender, colReceiver, colAmount, colTimestamp}

// ReadCSV decodes a headed CSV stream. Column order is free and header
// names are matched case-insensitively; transaction_id is optional.
func ReadCSV(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[name] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows rowCollector
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		amount, err := normalizeAmount(field(rec, colAmount))
		if err != nil {
			rows.fail(&RowError{Row: row, Field: colAmount, Err: err})
			continue
		}
		rows.add(Record{
			TransactionID: field(rec, colTransactionID),
			SenderID:      field(rec, colSender),
			ReceiverID:    field(rec, colReceiver),
			Amount:        amount,
			Timestamp:     field(rec, colTimestamp),
		}, row)
	}
	return rows.result()
}
