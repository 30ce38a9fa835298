// Package coordinator implements the single-threaded event loop that
// spawns worker processes, multiplexes their pipes, aggregates their
// output into one user-facing stream, and drives normal, probe,
// rebalance, and first-move-queue runs to completion.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/ppsolve/internal/combospace"
	"github.com/freeeve/ppsolve/internal/protocol"
	"github.com/freeeve/ppsolve/internal/sessionlog"
	"github.com/freeeve/ppsolve/internal/workqueue"
)

// MaxWorkers is the hard ceiling on -parallel N.
const MaxWorkers = 1024

// Config configures one coordinator run.
type Config struct {
	N              int
	PartitionOrder string
	Cap            int  // global solution cap; <=0 means unlimited
	ShowProgress   bool // gates the aggregated progress frontier's output

	// QueuePath, if non-empty, switches every spawned worker into
	// first-move-queue mode.
	QueuePath string

	// SessionLogPath, if non-empty, tees every aggregated line written
	// during a run into a zstd-compressed file at this path.
	SessionLogPath string

	Out       io.Writer // user-facing solutions/progress stream
	StatusOut io.Writer // periodic human status lines

	Spawner Spawner
	Log     zerolog.Logger
}

// Coordinator runs one configured coordination session. It keeps the
// session log handle open across every phase it runs; Run can be
// called once per Coordinator value.
type Coordinator struct {
	cfg Config

	logOnce    bool
	sessLog    *sessionlog.Writer
	sessLogErr error
}

// New returns a Coordinator ready to Run.
func New(cfg Config) *Coordinator {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.StatusOut == nil {
		cfg.StatusOut = os.Stderr
	}
	if cfg.PartitionOrder == "" {
		cfg.PartitionOrder = combospace.DefaultOrder
	}
	return &Coordinator{cfg: cfg}
}

// sessionWriter lazily opens the configured session log on first use
// and reuses the same handle across every phase of a run (probe mode
// calls runPhase six times; they must all tee into the one file, not
// each truncate it in turn).
func (c *Coordinator) sessionWriter() *sessionlog.Writer {
	if c.logOnce {
		return c.sessLog
	}
	c.logOnce = true
	if c.cfg.SessionLogPath == "" {
		return nil
	}
	w, err := sessionlog.Open(c.cfg.SessionLogPath)
	if err != nil {
		c.sessLogErr = err
		c.cfg.Log.Warn().Err(err).Msg("session log: open failed, continuing without it")
		return nil
	}
	c.sessLog = w
	return w
}

// Close releases the session log, if one was opened. Callers should
// defer it after constructing a Coordinator that may write one.
func (c *Coordinator) Close() error {
	if c.sessLog == nil {
		return nil
	}
	return c.sessLog.Close()
}

func clampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// workerEvent is what a pump goroutine feeds into the dispatch loop:
// either a complete frame, or an EOF/error terminating that worker.
type workerEvent struct {
	idx   int
	frame string
	eof   bool
}

// Run executes normal mode: spawn N workers each owning an equal
// strided slice of the combo space, multiplex their output until all
// finish or the context is cancelled, then drain and return.
func (c *Coordinator) Run(ctx context.Context) error {
	n := clampWorkers(c.cfg.N)
	specs := make([]WorkerSpec, n)
	for i := 0; i < n; i++ {
		pred, err := combospace.NewPredicate(c.cfg.PartitionOrder, combospace.Strided{Start: i, Stride: n, Max: combospace.Total})
		if err != nil {
			return fmt.Errorf("coordinator: %w", err)
		}
		specs[i] = WorkerSpec{
			Partition:      pred,
			PartitionOrder: c.cfg.PartitionOrder,
			TotalWorkers:   n,
		}
		if c.cfg.QueuePath != "" {
			specs[i].QueuePath = c.cfg.QueuePath
		}
	}

	var queueErr error
	if c.cfg.QueuePath != "" {
		if err := workqueue.Initialise(c.cfg.QueuePath, n); err != nil {
			queueErr = err
		}
		defer func() {
			if err := workqueue.Destroy(c.cfg.QueuePath); err != nil {
				c.cfg.Log.Warn().Err(err).Msg("workqueue: destroy failed")
			}
		}()
	}
	if queueErr != nil {
		return fmt.Errorf("coordinator: %w", queueErr)
	}

	_, err := c.runPhase(ctx, specs, nil)
	return err
}

// phaseResult summarizes one runPhase call for callers that need more
// than "it returned" — probe mode uses Dispatcher to read back heavy
// combos after each order's phase.
type phaseResult struct {
	dispatcher  *dispatcher
	interrupted bool
}

// runPhase spawns exactly len(specs) workers, multiplexes their pipes
// through a single dispatcher until every worker has finished, the
// context is cancelled, or onTick asks to stop (probe uses this to
// enforce a per-order wall-clock timeout). onTick is called roughly
// once a second; a nil onTick means "run to completion or
// cancellation".
func (c *Coordinator) runPhase(ctx context.Context, specs []WorkerSpec, onTick func(elapsed time.Duration, d *dispatcher) (stop bool)) (phaseResult, error) {
	return c.runPhaseHelpers(ctx, specs, func(elapsed time.Duration, d *dispatcher, _ func(int, WorkerSpec)) bool {
		if onTick == nil {
			return false
		}
		return onTick(elapsed, d)
	})
}

// runPhaseHelpers is runPhase's general form: onTick additionally
// receives a spawnHelper callback that starts a new worker in place
// of slot idx — which must currently be finished — without
// disturbing any other slot. Rebalance mode is the only caller that
// uses it; everyone else's onTick just ignores the third argument.
func (c *Coordinator) runPhaseHelpers(ctx context.Context, specs []WorkerSpec, onTick func(elapsed time.Duration, d *dispatcher, spawnHelper func(idx int, spec WorkerSpec)) (stop bool)) (phaseResult, error) {
	n := len(specs)
	disp := newDispatcher(n, c.cfg.Cap, c.cfg.ShowProgress, c.cfg.Out)
	if w := c.sessionWriter(); w != nil {
		disp.log = w
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan workerEvent, 4*n+16)
	handles := make([]WorkerHandle, n)
	active := 0

	var eg errgroup.Group
	startPump := func(idx int, h WorkerHandle) {
		eg.Go(func() error {
			pumpWorker(idx, h, events)
			return nil
		})
	}

	for i := 0; i < n; i++ {
		h, err := c.cfg.Spawner.Spawn(ctx, i, specs[i])
		if err != nil {
			c.cfg.Log.Warn().Int("worker", i).Err(err).Msg("spawn failed, continuing with fewer workers")
			disp.markFinished(i)
			continue
		}
		handles[i] = h
		active++
		startPump(i, h)
	}

	result := phaseResult{dispatcher: disp}

	spawnHelper := func(idx int, spec WorkerSpec) {
		if idx < 0 || idx >= n || !disp.workers[idx].finished {
			return
		}
		h, err := c.cfg.Spawner.Spawn(ctx, idx, spec)
		if err != nil {
			c.cfg.Log.Warn().Int("worker", idx).Err(err).Msg("helper spawn failed")
			return
		}
		disp.resetWorker(idx)
		handles[idx] = h
		active++
		startPump(idx, h)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	start := time.Now()
	lastStatus := start
	interrupted := false

	for active > 0 {
		select {
		case ev := <-events:
			if ev.eof {
				if !disp.workers[ev.idx].finished {
					disp.markFinished(ev.idx)
					active--
				}
				continue
			}
			res := disp.DispatchFrame(ev.idx, ev.frame)
			if res.capReached {
				c.signalAll(handles, disp)
			}

		case now := <-ticker.C:
			if now.Sub(lastStatus) >= 10*time.Second {
				c.writeStatus(disp)
				lastStatus = now
			}
			if !interrupted && ctx.Err() == nil && onTick != nil {
				if onTick(now.Sub(start), disp, spawnHelper) {
					interrupted = true
					c.signalAll(handles, disp)
				}
			}

		case <-ctx.Done():
			if !interrupted {
				interrupted = true
				c.signalAll(handles, disp)
			}
		}
	}

	_ = eg.Wait()
	for i, h := range handles {
		if h == nil {
			continue
		}
		if err := h.Wait(); err != nil {
			c.cfg.Log.Debug().Int("worker", i).Err(err).Msg("worker exited with error")
		}
	}

	result.interrupted = interrupted
	return result, nil
}

// pumpWorker reads worker idx's pipe to EOF, turning raw bytes into
// framed lines via protocol.Framer and feeding them to events. It runs
// in its own goroutine per worker and never blocks the dispatch loop.
func pumpWorker(idx int, h WorkerHandle, events chan<- workerEvent) {
	fr := protocol.NewFramer()
	buf := make([]byte, 4096)
	r := h.Output()
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, frame := range fr.Feed(buf[:n]) {
				events <- workerEvent{idx: idx, frame: frame}
			}
		}
		if err != nil {
			if tail, ok := fr.Flush(); ok {
				events <- workerEvent{idx: idx, frame: tail}
			}
			events <- workerEvent{idx: idx, eof: true}
			return
		}
	}
}

func (c *Coordinator) signalAll(handles []WorkerHandle, disp *dispatcher) {
	for i, h := range handles {
		if h == nil || disp.workers[i].finished {
			continue
		}
		if err := h.Signal(syscall.SIGTERM); err != nil {
			c.cfg.Log.Debug().Int("worker", i).Err(err).Msg("signal failed")
		}
	}
}

func (c *Coordinator) writeStatus(disp *dispatcher) {
	running := 0
	for _, w := range disp.workers {
		if !w.finished {
			running++
		}
	}
	if running == 0 {
		return
	}
	fmt.Fprintf(c.cfg.StatusOut, "%d worker(s) running", running)
	if running <= 16 {
		labels := make([]string, 0, running)
		for i, w := range disp.workers {
			if !w.finished && w.currentComboLabel != "" {
				labels = append(labels, fmt.Sprintf("#%d:%s", i, w.currentComboLabel))
			}
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(c.cfg.StatusOut, " %s", l)
		}
	}
	fmt.Fprintln(c.cfg.StatusOut)
}
