package domain

import (
	"math"
	"slices"
)

// PatternType names the detector family that produced a ring.
type PatternType string

const (
	PatternCycle        PatternType = "cycle"
	PatternFanInFanOut  PatternType = "fan_in_fan_out"
	PatternLayeredShell PatternType = "layered_shell"
)

// Ring is a group of accounts participating in one detected pattern instance.
// Rings are created once by a detector and never modified afterwards.
type Ring struct {
	ID          string
	Members     []AccountID
	PatternType PatternType
	RiskScore   float64
}

// Contains reports whether the account belongs to the ring.
func (r Ring) Contains(id AccountID) bool {
	return slices.Contains(r.Members, id)
}

// ClampScore bounds a score to [0, 100] and rounds it to two decimals.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*100) / 100
}
