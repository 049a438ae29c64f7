package generator

import "time"

// Config drives the synthetic data generator.
type Config struct {
	NumAccounts     int
	NumTransactions int
	Cycles          int
	FanHubs         int
	ShellChains     int
	PayrollBatches  int
	// Start and Span bound the timestamps of background traffic; planted
	// patterns are placed inside the same range.
	Start time.Time
	Span  time.Duration
	Seed  int64
}

// DefaultConfig returns a month of traffic with a handful of planted rings.
func DefaultConfig() Config {
	return Config{
		NumAccounts:     2000,
		NumTransactions: 20000,
		Cycles:          3,
		FanHubs:         2,
		ShellChains:     2,
		PayrollBatches:  1,
		Start:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Span:            30 * 24 * time.Hour,
		Seed:            42,
	}
}
