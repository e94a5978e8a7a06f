// Package keyspace models the search keyspace as inclusive big-integer
// intervals and deterministically partitions it across fleet workers.
package keyspace

import (
	"fmt"
	"math/big"
	"strings"
)

// Interval is an inclusive [Start, End] range of candidate keys. Puzzle
// ranges exceed 64 bits, so bounds are arbitrary-precision integers.
// Immutable once constructed; accessors return copies.
type Interval struct {
	start *big.Int
	end   *big.Int
}

// NewInterval builds an interval from inclusive bounds. Bounds are copied.
func NewInterval(start, end *big.Int) (Interval, error) {
	if start == nil || end == nil {
		return Interval{}, fmt.Errorf("interval bounds are required")
	}
	if start.Sign() < 0 {
		return Interval{}, fmt.Errorf("interval start must be non-negative, got %s", start)
	}
	if start.Cmp(end) > 0 {
		return Interval{}, fmt.Errorf("interval start %s exceeds end %s", start, end)
	}
	return Interval{start: new(big.Int).Set(start), end: new(big.Int).Set(end)}, nil
}

// ParseInterval parses inclusive bounds from "0x"-prefixed hex or decimal
// strings, matching the solver's config format.
func ParseInterval(start, end string) (Interval, error) {
	lo, err := parseBound(start)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval start: %w", err)
	}
	hi, err := parseBound(end)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval end: %w", err)
	}
	return NewInterval(lo, hi)
}

func parseBound(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty bound")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("unparseable bound %q", s)
	}
	return n, nil
}

// Start returns a copy of the inclusive lower bound.
func (iv Interval) Start() *big.Int { return new(big.Int).Set(iv.start) }

// End returns a copy of the inclusive upper bound.
func (iv Interval) End() *big.Int { return new(big.Int).Set(iv.end) }

// Size returns the number of keys in the interval (end - start + 1).
func (iv Interval) Size() *big.Int {
	size := new(big.Int).Sub(iv.end, iv.start)
	return size.Add(size, big.NewInt(1))
}

// IsZero reports whether the interval is the uninitialized zero value.
func (iv Interval) IsZero() bool { return iv.start == nil || iv.end == nil }

// Equal reports whether both intervals have identical bounds.
func (iv Interval) Equal(other Interval) bool {
	if iv.IsZero() || other.IsZero() {
		return iv.IsZero() && other.IsZero()
	}
	return iv.start.Cmp(other.start) == 0 && iv.end.Cmp(other.end) == 0
}

// HexStart returns the lower bound as a "0x"-prefixed hex string.
func (iv Interval) HexStart() string { return "0x" + iv.start.Text(16) }

// HexEnd returns the upper bound as a "0x"-prefixed hex string.
func (iv Interval) HexEnd() string { return "0x" + iv.end.Text(16) }

// String renders the interval for logs and status output.
func (iv Interval) String() string {
	if iv.IsZero() {
		return "[unassigned]"
	}
	return fmt.Sprintf("[%s, %s]", iv.HexStart(), iv.HexEnd())
}
