package ingest

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadJSON decodes a JSON array of records using the same field names as
// the CSV header.
func ReadJSON(r io.Reader) ([]domain.Transaction, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("decode json: %w", err)
	}

	var rows rowCollector
	for i, rec := range records {
		rows.add(rec, i+1)
	}
	return rows.result()
}
