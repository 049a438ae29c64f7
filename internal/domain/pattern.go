package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PatternKind is the closed set of per-account pattern tags written by detectors.
type PatternKind int

const (
	KindCycle PatternKind = iota + 1
	KindSmurfing
	KindShellNetwork
)

// Pattern is a tag attached to an account aggregate. Length is only meaningful
// for KindCycle and carries the number of accounts in the cycle.
type Pattern struct {
	Kind   PatternKind
	Length int
}

// CyclePattern tags a member of a cycle of the given length.
func CyclePattern(length int) Pattern {
	return Pattern{Kind: KindCycle, Length: length}
}

var (
	SmurfingPattern     = Pattern{Kind: KindSmurfing}
	ShellNetworkPattern = Pattern{Kind: KindShellNetwork}
)

// String renders the tag in its wire form, e.g. "cycle_length_3".
func (p Pattern) String() string {
	switch p.Kind {
	case KindCycle:
		return "cycle_length_" + strconv.Itoa(p.Length)
	case KindSmurfing:
		return "smurfing"
	case KindShellNetwork:
		return "shell_network"
	default:
		return fmt.Sprintf("pattern(%d)", int(p.Kind))
	}
}

// ParsePattern is the inverse of Pattern.String.
func ParsePattern(s string) (Pattern, error) {
	switch {
	case s == "smurfing":
		return SmurfingPattern, nil
	case s == "shell_network":
		return ShellNetworkPattern, nil
	case strings.HasPrefix(s, "cycle_length_"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "cycle_length_"))
		if err != nil || n <= 0 {
			return Pattern{}, fmt.Errorf("invalid cycle pattern %q", s)
		}
		return CyclePattern(n), nil
	}
	return Pattern{}, fmt.Errorf("unknown pattern %q", s)
}

// PatternSet is a set of tags with union semantics.
type PatternSet map[Pattern]struct{}

// Add inserts the pattern. Adding an existing tag is a no-op.
func (s PatternSet) Add(p Pattern) {
	s[p] = struct{}{}
}

// HasKind reports whether any tag of the given kind is present.
func (s PatternSet) HasKind(kind PatternKind) bool {
	for p := range s {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

// Strings returns the wire form of every tag, sorted.
func (s PatternSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}
