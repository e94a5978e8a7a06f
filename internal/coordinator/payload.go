package coordinator

import (
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/keyfleet/internal/config"
	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
)

// BuildPayload renders the per-worker configuration handed to the
// transport for deployment: key=value lines with the worker's assigned
// interval as hex bounds, solver tuning knobs, and opaque passthrough
// pairs (notification credentials) appended untouched in sorted order.
func BuildPayload(cfg *config.Config, worker string, iv keyspace.Interval) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# generated for %s\n", worker)
	fmt.Fprintf(&b, "start=%s\n", iv.HexStart())
	fmt.Fprintf(&b, "end=%s\n", iv.HexEnd())
	fmt.Fprintf(&b, "cores=0\n")
	fmt.Fprintf(&b, "mode=%s\n", cfg.Solver.Mode)
	fmt.Fprintf(&b, "switch_interval=%d\n", cfg.Solver.SwitchInterval)
	fmt.Fprintf(&b, "subinterval_ratio=%g\n", cfg.Solver.SubintervalRatio)
	fmt.Fprintf(&b, "stop_on_find=%t\n", cfg.Solver.StopOnFind)
	fmt.Fprintf(&b, "puzzle_file=%s\n", cfg.Solver.PuzzleFile)
	fmt.Fprintf(&b, "baby_steps=true\n")
	fmt.Fprintf(&b, "giant_steps=true\n")
	fmt.Fprintf(&b, "bloom_filter=false\n")
	fmt.Fprintf(&b, "smart_jump=true\n")
	fmt.Fprintf(&b, "batch_size=%d\n", cfg.Solver.BatchSize)
	fmt.Fprintf(&b, "checkpoint_interval=%d\n", cfg.Solver.CheckpointInterval)

	keys := make([]string, 0, len(cfg.Notify))
	for k := range cfg.Notify {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, cfg.Notify[k])
	}
	return b.String()
}
