package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/freeeve/ppsolve/internal/combospace"
)

// DefaultProbeTimeout is the per-order wall-clock budget used when
// -probe is given with no explicit seconds.
const DefaultProbeTimeout = 60 * time.Second

// MaxProbeTimeout is the ceiling -probe T accepts.
const MaxProbeTimeout = 3600 * time.Second

// clampProbeTimeout applies -probe's default-and-ceiling rule: <=0
// means "use the default", and anything past the ceiling is capped.
func clampProbeTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultProbeTimeout
	}
	if timeout > MaxProbeTimeout {
		return MaxProbeTimeout
	}
	return timeout
}

// probeOrders are the six permutations of {k,p,c} cycled by probe
// mode, in a fixed order so repeated runs are comparable.
var probeOrders = []string{"kpc", "kcp", "pkc", "pck", "ckp", "cpk"}

// Probe runs each of the six partition-order permutations for up to
// timeout, spawning the same N-way partition as normal mode each
// time. Any combo still running when an order's timeout fires is
// recorded in a shared heavy-combo table; the table is printed,
// sorted by how often each combo showed up, once all six orders have
// run or the context is cancelled.
func (c *Coordinator) Probe(ctx context.Context, timeout time.Duration) error {
	timeout = clampProbeTimeout(timeout)

	n := clampWorkers(c.cfg.N)
	heavy := newHeavyTable()

	for _, order := range probeOrders {
		if ctx.Err() != nil {
			break
		}

		specs := make([]WorkerSpec, n)
		for i := 0; i < n; i++ {
			pred, err := combospace.NewPredicate(order, combospace.Strided{Start: i, Stride: n, Max: combospace.Total})
			if err != nil {
				return fmt.Errorf("coordinator: probe: %w", err)
			}
			specs[i] = WorkerSpec{
				Partition:      pred,
				PartitionOrder: order,
				TotalWorkers:   n,
			}
		}

		deadline := timeout
		_, err := c.runPhase(ctx, specs, func(elapsed time.Duration, d *dispatcher) bool {
			if elapsed < deadline {
				return false
			}
			// Snapshot every still-running worker's current combo now,
			// while it is still live: by the time runPhase returns,
			// every worker has hit EOF and been markFinished, at which
			// point recordHeavy would find nothing left to record.
			d.heavy = heavy
			d.recordHeavy()
			return true
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(c.cfg.Out)
	fmt.Fprintln(c.cfg.Out, "probe summary:")
	for _, entry := range heavy.Sorted() {
		fmt.Fprintf(c.cfg.Out, "  %s seen %d max %d+%d\n", entry.key, entry.seenCount, entry.maxDepth/100, entry.maxDepth%100)
	}
	return nil
}
