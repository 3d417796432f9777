package pointcloud

import (
	"fmt"
	"strings"
)

// Mode selects which derived collection to produce.
type Mode int

const (
	// ModeFull is the raw union of every retained observation.
	ModeFull Mode = iota
	// ModeAverage is one mean point per identifier.
	ModeAverage
	// ModeDistanceFilter is one distance-filtered mean point per identifier.
	ModeDistanceFilter
)

// AllModes lists the modes in export order.
var AllModes = []Mode{ModeFull, ModeAverage, ModeDistanceFilter}

// String returns the short token used in file names and configuration.
func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeAverage:
		return "avg"
	case ModeDistanceFilter:
		return "dist"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the short tokens as well as a few long-form aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "raw":
		return ModeFull, nil
	case "avg", "average", "mean":
		return ModeAverage, nil
	case "dist", "distance", "filter":
		return ModeDistanceFilter, nil
	}
	return 0, fmt.Errorf("unknown aggregation mode %q", s)
}

// ParseModes parses a list of mode tokens, dropping repeats while keeping
// first-seen order.
func ParseModes(tokens []string) ([]Mode, error) {
	out := make([]Mode, 0, len(tokens))
	seen := make(map[Mode]bool, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		m, err := ParseMode(tok)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}
