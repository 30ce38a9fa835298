package coordinator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/freeeve/ppsolve/internal/combospace"
)

// WorkerSpec is everything the coordinator decides about one worker
// before spawning it, independent of how that worker is actually
// realized (a child process or an in-process goroutine for tests).
type WorkerSpec struct {
	Partition      combospace.Predicate
	PartitionOrder string
	FirstMove      combospace.FirstMoveFilter
	QueuePath      string
	TotalWorkers   int
	SingleCombo    *int
}

// WorkerHandle is the coordinator's view of a running worker,
// abstracting over a real child process and an in-process stand-in.
type WorkerHandle interface {
	// Output is the worker's combined stdout+stderr stream.
	Output() io.Reader

	// Signal asks the worker to stop; for a real child this is
	// os.Signal delivery, for an in-process worker it is context
	// cancellation triggered by the signal value's presence.
	Signal(sig os.Signal) error

	// Wait blocks until the worker has exited and releases its
	// resources (file descriptors, goroutines).
	Wait() error
}

// Spawner creates worker handles. internal/coordinator depends on
// this interface, not on os/exec directly, so dispatch/aggregation
// logic can be tested against an in-process fake.
type Spawner interface {
	Spawn(ctx context.Context, index int, spec WorkerSpec) (WorkerHandle, error)
}

// ExecSpawner spawns real child processes by re-invoking the current
// binary with -worker and the flags that encode a WorkerSpec. This is
// the production spawner: each worker gets its own address space and
// its own copy of whatever the engine holds, rather than sharing one
// process's memory across goroutines.
type ExecSpawner struct {
	// BinaryPath is the executable to re-invoke; cmd/ppsolve sets it to
	// os.Executable(), falling back to os.Args[0].
	BinaryPath string

	// ExtraArgs are prepended ahead of the WorkerSpec-derived flags
	// (e.g. -engine=reference, -log-level=warn) so a worker child
	// inherits the parent's ambient configuration.
	ExtraArgs []string
}

func (s *ExecSpawner) Spawn(ctx context.Context, index int, spec WorkerSpec) (WorkerHandle, error) {
	args := append([]string{}, s.ExtraArgs...)
	args = append(args, "-worker")
	args = append(args, workerSpecArgs(spec)...)

	cmd := exec.CommandContext(ctx, s.BinaryPath, args...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("coordinator: worker %d: pipe: %w", index, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, fmt.Errorf("coordinator: worker %d: start: %w", index, err)
	}
	// The parent's copy of the write end must close so EOF reaches pr
	// once the child (the only other writer) exits.
	pw.Close()

	return &execHandle{cmd: cmd, r: pr}, nil
}

// workerSpecArgs renders spec as the flag list a worker subprocess
// parses on its own side (cmd/ppsolve's -worker branch).
func workerSpecArgs(spec WorkerSpec) []string {
	var args []string
	if spec.PartitionOrder != "" {
		args = append(args, "-partition-order", spec.PartitionOrder)
	}
	a := spec.Partition.Assignment()
	if a.Stride > 0 {
		args = append(args, "-partition-range", fmt.Sprintf("%d/%d/%d", a.Start, a.Stride, a.Max))
	}
	if spec.QueuePath != "" {
		// Queue-mode workers derive a Rotation filter themselves, after
		// acquiring their index from the shared counter file. This is
		// internal coordinator-to-child plumbing, distinct from the
		// user-facing "-first-move-queue N" flag (which names a worker
		// *count*, not a file) — the coordinator alone knows the path
		// it generated when it created the queue file.
		args = append(args, "-worker-queue-path", spec.QueuePath)
		args = append(args, "-worker-total", fmt.Sprintf("%d", spec.TotalWorkers))
	} else if spec.FirstMove.Kind() == combospace.FirstMoveStatic {
		idx, total := spec.FirstMove.StaticParams()
		args = append(args, "-first-move-partition", fmt.Sprintf("%d/%d", idx+1, total))
	}
	if spec.SingleCombo != nil {
		args = append(args, "-single-combo", fmt.Sprintf("%d", *spec.SingleCombo))
	}
	return args
}

type execHandle struct {
	cmd *exec.Cmd
	r   *os.File
}

func (h *execHandle) Output() io.Reader { return h.r }

func (h *execHandle) Signal(sig os.Signal) error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Signal(sig)
}

func (h *execHandle) Wait() error {
	err := h.cmd.Wait()
	h.r.Close()
	return err
}
