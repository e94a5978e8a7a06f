// Package stats extracts structured solver metrics from free-text log tails.
package stats

import (
	"fmt"
	"strconv"
	"strings"
)

// Labels emitted by the solver's periodic status line. The line is
// pipe-delimited, e.g. "Stats | Total: 123456789 | Vitesse: 4521 k/s".
const (
	totalLabel = "Total:"
	speedLabel = "Vitesse:"
)

// Sample holds the metrics extracted from one status line.
type Sample struct {
	KeysChecked uint64
	KeysPerSec  float64
}

// Parse scans a log tail for the first line carrying both the Total: and
// Vitesse: labels and extracts the first whitespace-delimited token after
// each label. Scanning stops at the first matching line (the most recent
// status line wins). A tail with no matching line, or with unparseable
// tokens, yields an error and no partial sample.
func Parse(tail string) (Sample, error) {
	for _, line := range strings.Split(tail, "\n") {
		if !strings.Contains(line, totalLabel) || !strings.Contains(line, speedLabel) {
			continue
		}
		return parseLine(line)
	}
	return Sample{}, fmt.Errorf("no status line with %q and %q found", totalLabel, speedLabel)
}

func parseLine(line string) (Sample, error) {
	var (
		sample   Sample
		gotTotal bool
		gotSpeed bool
	)

	for _, segment := range strings.Split(line, "|") {
		switch {
		case strings.Contains(segment, totalLabel):
			tok, err := tokenAfter(segment, totalLabel)
			if err != nil {
				return Sample{}, err
			}
			total, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				return Sample{}, fmt.Errorf("invalid total keys %q: %w", tok, err)
			}
			sample.KeysChecked = total
			gotTotal = true
		case strings.Contains(segment, speedLabel):
			tok, err := tokenAfter(segment, speedLabel)
			if err != nil {
				return Sample{}, err
			}
			speed, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return Sample{}, fmt.Errorf("invalid throughput %q: %w", tok, err)
			}
			sample.KeysPerSec = speed
			gotSpeed = true
		}
	}

	if !gotTotal || !gotSpeed {
		return Sample{}, fmt.Errorf("status line missing metric values")
	}
	return sample, nil
}

// tokenAfter returns the first whitespace-delimited token following the
// label within the segment.
func tokenAfter(segment, label string) (string, error) {
	_, rest, ok := strings.Cut(segment, label)
	if !ok {
		return "", fmt.Errorf("label %q not found", label)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", fmt.Errorf("no value after %q", label)
	}
	return fields[0], nil
}
