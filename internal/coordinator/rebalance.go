package coordinator

import (
	"context"
	"time"

	"github.com/freeeve/ppsolve/internal/combospace"
)

// DefaultRebalanceWatch is the wall-clock point at which rebalance
// mode stops waiting for the initial pool to finish on its own and
// starts spawning helpers into free slots.
const DefaultRebalanceWatch = 60 * time.Second

// rebalancePhase names the states of the rebalance state machine:
// INITIAL_POOL -> WATCHFUL (t>=T) -> REBALANCED -> DRAINING -> DONE.
// Helpers are only ever spawned during WATCHFUL; once the run moves
// to REBALANCED no further helper is created, even if more slots
// free up later.
type rebalancePhase int

const (
	phaseInitialPool rebalancePhase = iota
	phaseWatchful
	phaseRebalanced
	phaseDraining
	phaseDone
)

// Rebalance runs normal N-way partitioning, but once t>=watch a
// helper is spawned into every worker slot that has already finished,
// each one restricted (via -single-combo and a static first-move
// split) to chip away at whichever still-running worker currently
// looks busiest. Helpers stop being spawned the instant the run
// leaves the watchful window, even if more slots free up afterward;
// duplicate solutions from a helper racing its target worker are an
// accepted trade-off, not deduplicated here.
func (c *Coordinator) Rebalance(ctx context.Context, watch time.Duration) error {
	if watch <= 0 {
		watch = DefaultRebalanceWatch
	}

	n := clampWorkers(c.cfg.N)
	specs := make([]WorkerSpec, n)
	for i := 0; i < n; i++ {
		pred, err := combospace.NewPredicate(c.cfg.PartitionOrder, combospace.Strided{Start: i, Stride: n, Max: combospace.Total})
		if err != nil {
			return err
		}
		specs[i] = WorkerSpec{
			Partition:      pred,
			PartitionOrder: c.cfg.PartitionOrder,
			TotalWorkers:   n,
		}
	}

	phase := phaseInitialPool
	helped := make([]bool, n) // slot index -> a helper has already been spawned into it
	const helperSplit = 4     // how many helper slices a busy worker's remaining work is cut into

	_, err := c.runPhaseHelpers(ctx, specs, func(elapsed time.Duration, d *dispatcher, spawnHelper func(idx int, spec WorkerSpec)) bool {
		switch phase {
		case phaseInitialPool:
			if elapsed >= watch {
				phase = phaseWatchful
			}
			return false
		case phaseWatchful:
			busiest := busiestRunningWorker(d)
			for i, w := range d.workers {
				if !w.finished || helped[i] || busiest < 0 {
					continue
				}
				helped[i] = true
				busyLabel := d.workers[busiest].currentComboLabel
				if busyLabel == "" {
					continue
				}
				singleIdx := leadingComboIndex(busyLabel)
				if singleIdx < 0 {
					continue
				}
				spawnHelper(i, WorkerSpec{
					Partition:      specs[busiest].Partition,
					PartitionOrder: c.cfg.PartitionOrder,
					FirstMove:      combospace.Static(i%helperSplit, helperSplit),
					SingleCombo:    &singleIdx,
				})
			}
			phase = phaseRebalanced
			return false
		default:
			return false
		}
	})
	return err
}

// busiestRunningWorker returns the index of the non-finished worker
// with the greatest last_depth, or -1 if every worker has finished.
func busiestRunningWorker(d *dispatcher) int {
	best := -1
	for i, w := range d.workers {
		if w.finished {
			continue
		}
		if best < 0 || w.lastDepth > d.workers[best].lastDepth {
			best = i
		}
	}
	return best
}

// leadingComboIndex parses the leading decimal run of a combo label
// (the same convention heavyTable keys on) back into an int, or -1 if
// the label doesn't start with a digit.
func leadingComboIndex(label string) int {
	s := leadingInt(label)
	if s == "" || s[0] < '0' || s[0] > '9' {
		return -1
	}
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
