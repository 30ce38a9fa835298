// Package worker implements a single forked worker process's body:
// install a partition and first-move filter, wire the combined
// stdout/stderr pipe to a protocol encoder, and drive the out-of-scope
// solver to completion or until signalled.
package worker

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/freeeve/ppsolve/internal/combospace"
	"github.com/freeeve/ppsolve/internal/engine"
	"github.com/freeeve/ppsolve/internal/protocol"
	"github.com/freeeve/ppsolve/internal/workqueue"
)

// Config bundles everything a worker needs to know about its slice of
// the combo space before it starts solving.
type Config struct {
	// Partition is the combo-ownership predicate this worker installs
	// directly (-partition/-partition-range mode). Ignored if
	// QueuePath is set: a queue-mode worker walks the whole combo space
	// under Partition's order, so every queue worker meets the same
	// ply-1 targets.
	Partition combospace.Predicate

	// FirstMove is the static or rotation first-move filter this
	// worker installs directly. Ignored if QueuePath is set.
	FirstMove combospace.FirstMoveFilter

	// QueuePath, if non-empty, switches this worker into first-move-
	// queue mode: it acquires its worker index from the shared
	// work-queue file and derives a Rotation filter from it, rather
	// than using FirstMove directly.
	QueuePath    string
	TotalWorkers int

	// SingleCombo restricts the search to one combo index
	// (-single-combo), bypassing Partition entirely.
	SingleCombo *int

	// PartitionOrder is the order this worker's Partition/SingleCombo
	// indices were computed under.
	PartitionOrder string
}

// Run drives one worker process's lifetime. It does not return until
// the engine finishes, the context is cancelled, or a SIGINT/SIGTERM
// arrives.
//
// "Releasing the coordinator-owned worker array reference" has no
// Go-native analogue here: a worker process never held that slice to
// begin with, since it runs in its own address space with its own
// copy of nothing. There is deliberately no code for it; this comment
// is the record of that decision, not an omission.
func Run(ctx context.Context, cfg Config, out io.Writer, eng engine.Engine) error {
	signal.Reset(os.Interrupt, syscall.SIGTERM)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pred := cfg.Partition
	filter := cfg.FirstMove
	if cfg.QueuePath != "" {
		order := pred.Order()
		if order == "" {
			order = combospace.DefaultOrder
		}
		if whole, err := combospace.NewPredicate(order, combospace.Strided{Start: 0, Stride: 1, Max: combospace.Total}); err == nil {
			pred = whole
		}
		idx, ok := workqueue.Open(cfg.QueuePath).AcquireWorkerIndex()
		if ok {
			filter = combospace.Rotation(idx, cfg.TotalWorkers)
		} else {
			filter = combospace.FirstMoveFilter{}
		}
	}

	eng.SetForkedWorker(true)

	engCfg := engine.Config{
		Predicate:   pred,
		Filter:      filter,
		SingleCombo: cfg.SingleCombo,
	}

	err := eng.Solve(ctx, engCfg, protocol.NewEncoder(out))
	if ctx.Err() != nil {
		return nil
	}
	return err
}
