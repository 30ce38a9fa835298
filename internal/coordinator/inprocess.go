package coordinator

import (
	"context"
	"io"
	"os"

	"github.com/freeeve/ppsolve/internal/engine"
	"github.com/freeeve/ppsolve/internal/worker"
)

// InProcessSpawner runs each worker as a goroutine driving worker.Run
// against a fresh Engine, piping its output through an in-memory
// io.Pipe instead of a real child process. It is the test double for
// ExecSpawner — internal/coordinator's dispatch and aggregation logic
// is exercised through this without spawning anything, matching the
// teacher's eval.TablebasePool style of pooling engine instances behind
// a uniform worker interface.
type InProcessSpawner struct {
	// NewEngine constructs a fresh Engine for each worker. Required.
	NewEngine func() engine.Engine
}

func (s *InProcessSpawner) Spawn(ctx context.Context, index int, spec WorkerSpec) (WorkerHandle, error) {
	pr, pw := io.Pipe()

	cfg := worker.Config{
		Partition:      spec.Partition,
		FirstMove:      spec.FirstMove,
		QueuePath:      spec.QueuePath,
		TotalWorkers:   spec.TotalWorkers,
		SingleCombo:    spec.SingleCombo,
		PartitionOrder: spec.PartitionOrder,
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		err := worker.Run(workerCtx, cfg, pw, s.NewEngine())
		pw.CloseWithError(err)
		done <- err
	}()

	return &inProcessHandle{r: pr, cancel: cancel, done: done}, nil
}

type inProcessHandle struct {
	r      *io.PipeReader
	cancel context.CancelFunc
	done   chan error
}

func (h *inProcessHandle) Output() io.Reader { return h.r }

// Signal cancels the worker's context; an in-process worker has no
// real signal to deliver, but worker.Run reacts to cancellation the
// same way it would react to a terminating signal.
func (h *inProcessHandle) Signal(sig os.Signal) error {
	h.cancel()
	return nil
}

func (h *inProcessHandle) Wait() error {
	err := <-h.done
	h.r.Close()
	return err
}
