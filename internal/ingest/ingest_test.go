package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"Timestamp,Sender_ID,receiver_id,amount,transaction_id",
		"2025-03-01 09:00:00,ACC_1,ACC_2,1500.50,T1",
		"2025-03-01T10:30:00Z,  ACC_2 , ACC_3,\"1,200\",",
		"2025-03-02,ACC_3,ACC_1,$99,T3",
	}, "\n")

	txs, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	want := []domain.Transaction{
		{ID: "T1", SenderID: "ACC_1", ReceiverID: "ACC_2", Amount: 1500.50, Timestamp: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "TX-2", SenderID: "ACC_2", ReceiverID: "ACC_3", Amount: 1200, Timestamp: time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
		{ID: "T3", SenderID: "ACC_3", ReceiverID: "ACC_1", Amount: 99, Timestamp: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	assert.Equal(t, want, txs)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		target  error
		wantMsg []string
	}{
		{
			name:   "empty input",
			input:  "",
			target: ErrEmptyDataset,
		},
		{
			name:   "header only",
			input:  "sender_id,receiver_id,amount,timestamp\n",
			target: ErrEmptyDataset,
		},
		{
			name:    "missing columns",
			input:   "sender_id,amount\nA,10\n",
			target:  ErrMissingColumn,
			wantMsg: []string{"receiver_id", "timestamp"},
		},
		{
			name: "malformed rows",
			input: strings.Join([]string{
				"sender_id,receiver_id,amount,timestamp",
				"A,B,ten,2025-03-01",
				",B,10,2025-03-01",
				"A,B,-5,2025-03-01",
				"A,B,10,yesterday",
				"A,B,10,2025-03-01",
			}, "\n"),
			wantMsg: []string{"row 1: amount", "row 2: sender_id", "row 3: amount", "row 4: timestamp"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			txs, err := ReadCSV(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.Nil(t, txs)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
			for _, msg := range tc.wantMsg {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestReadCSV_RowErrorsAreTyped(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("sender_id,receiver_id,amount,timestamp\nA,,10,2025-03-01\n"))
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Row)
	assert.Equal(t, "receiver_id", rowErr.Field)
}

func TestReadCSV_CapsRowErrors(t *testing.T) {
	var b strings.Builder
	b.WriteString("sender_id,receiver_id,amount,timestamp\n")
	for i := 0; i < 50; i++ {
		b.WriteString("A,B,0,2025-03-01\n")
	}
	_, err := ReadCSV(strings.NewReader(b.String()))
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), maxRowErrors)
}

func TestReadJSON(t *testing.T) {
	input := `[
		{"transaction_id": "T1", "sender_id": "A", "receiver_id": "B", "amount": 10, "timestamp": "2025-03-01T09:00:00Z"},
		{"sender_id": "B", "receiver_id": "C", "amount": 12.5, "timestamp": "2025-03-01 10:00:00"}
	]`

	txs, err := ReadJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "T1", txs[0].ID)
	assert.Equal(t, "TX-2", txs[1].ID)
	assert.Equal(t, 12.5, txs[1].Amount)

	_, err = ReadJSON(strings.NewReader("[]"))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = ReadJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestReadFile_DetectsFormat(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "txs.csv")
	jsonPath := filepath.Join(dir, "txs.JSON")
	require.NoError(t, os.WriteFile(csvPath, []byte("sender_id,receiver_id,amount,timestamp\nA,B,1,2025-03-01\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"sender_id":"A","receiver_id":"B","amount":1,"timestamp":"2025-03-01"}]`), 0o644))

	for _, path := range []string{csvPath, jsonPath} {
		txs, err := ReadFile(path)
		require.NoError(t, err, path)
		assert.Len(t, txs, 1)
	}

	_, err := ReadFile(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTimestamp(t *testing.T) {
	for _, raw := range []string{"2025-03-01T09:00:00Z", "2025-03-01T11:00:00+02:00", "2025-03-01 09:00:00", "2025-03-01T09:00:00"} {
		ts, err := ParseTimestamp(raw)
		require.NoError(t, err, raw)
		assert.True(t, ts.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)), raw)
	}
	_, err := ParseTimestamp("01/03/2025")
	assert.Error(t, err)
}
