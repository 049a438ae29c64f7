// Package ingest decodes transaction datasets from CSV and JSON and rejects
// malformed rows before they reach the detection engine.
package ingest

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

// Record is one raw input row.
type Record struct {
	TransactionID string  `json:"transaction_id"`
	SenderID      string  `json:"sender_id" validate:"required,max=128"`
	ReceiverID    string  `json:"receiver_id" validate:"required,max=128"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Timestamp     string  `json:"timestamp" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// toTransaction validates r and converts it. row is used for error
// reporting and for the generated id when the row carries none.
func (r Record) toTransaction(row int) (domain.Transaction, error) {
	r.TransactionID = sanitizeString(r.TransactionID)
	r.SenderID = normalizeAccountID(r.SenderID)
	r.ReceiverID = normalizeAccountID(r.ReceiverID)

	if math.IsInf(r.Amount, 0) || math.IsNaN(r.Amount) {
		return domain.Transaction{}, &RowError{Row: row, Field: "amount", Err: errors.New("not a finite number")}
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.Transaction{}, &RowError{Row: row, Field: fieldName(fe.Field()), Err: fmt.Errorf("failed %q check", fe.Tag())}
		}
		return domain.Transaction{}, &RowError{Row: row, Err: err}
	}

	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return domain.Transaction{}, &RowError{Row: row, Field: "timestamp", Err: err}
	}

	id := r.TransactionID
	if id == "" {
		id = fmt.Sprintf("TX-%d", row)
	}
	return domain.Transaction{
		ID:         id,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Amount:     r.Amount,
		Timestamp:  ts,
	}, nil
}

func fieldName(structField string) string {
	switch structField {
	case "SenderID":
		return colSender
	case "ReceiverID":
		return colReceiver
	case "Amount":
		return colAmount
	case "Timestamp":
		return colTimestamp
	default:
		return structField
	}
}

// rowCollector accumulates converted rows and at most maxRowErrors
// row errors.
type rowCollector struct {
	txs   []domain.Transaction
	errs  []error
	total int
}

func (c *rowCollector) add(r Record, row int) {
	tx, err := r.toTransaction(row)
	if err != nil {
		c.fail(err)
		return
	}
	c.total++
	c.txs = append(c.txs, tx)
}

func (c *rowCollector) fail(err error) {
	c.total++
	if len(c.errs) < maxRowErrors {
		c.errs = append(c.errs, err)
	}
}

func (c *rowCollector) result() ([]domain.Transaction, error) {
	if c.total == 0 {
		return nil, ErrEmptyDataset
	}
	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return c.txs, nil
}
