package coordinator

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/freeeve/ppsolve/internal/protocol"
)

// solutionHeader matches a TEXT body that opens a new solution.
var solutionHeader = regexp.MustCompile(`^[1-9]\.`)

// dispatchResult carries side effects the event loop must act on that
// the dispatcher itself has no business performing (signalling other
// workers is the loop's job, not this unit's).
type dispatchResult struct {
	capReached bool
}

// lineSink receives a copy of every user-facing line the dispatcher
// writes, for session logging. internal/sessionlog.Writer satisfies
// this; tests can use a simpler fake without pulling in zstd.
type lineSink interface {
	WriteLine(line string) error
}

// dispatcher implements the event-dispatch table that turns a worker's
// decoded protocol records into coordinator-side state changes and
// user-facing output. It owns no process or channel machinery —
// constructing one needs only the worker count and an output sink —
// so it is directly unit testable, independent of the spawn/multiplex
// code that feeds it frames.
type dispatcher struct {
	workers   []*workerState
	progress  *progressAggregator
	heavy     *heavyTable // non-nil only during a probe phase
	cap       int         // solution cap; <=0 means unlimited
	solutions int
	out       io.Writer
	log       lineSink // nil unless a session log was configured

	start time.Time
	now   func() time.Time // overridable for tests; defaults to time.Now
}

func newDispatcher(n int, cap int, showProgress bool, out io.Writer) *dispatcher {
	workers := make([]*workerState, n)
	for i := range workers {
		workers[i] = newWorkerState()
	}
	return &dispatcher{
		workers:  workers,
		progress: newProgressAggregator(n, showProgress),
		cap:      cap,
		out:      out,
		start:    time.Now(),
		now:      time.Now,
	}
}

// writeLine writes line to both the user-facing output and, if
// configured, the session log.
func (d *dispatcher) writeLine(line string) {
	fmt.Fprintln(d.out, line)
	if d.log != nil {
		d.log.WriteLine(line)
	}
}

// DispatchFrame is the entry point: a raw frame off worker idx's pipe,
// which may or may not contain the @@ marker.
func (d *dispatcher) DispatchFrame(idx int, frame string) dispatchResult {
	rec, ok := protocol.Parse(frame)
	if !ok {
		d.dispatchOpaque(frame)
		return dispatchResult{}
	}
	return d.dispatchRecord(idx, rec)
}

// dispatchOpaque implements the non-@@ frame suppression rules: blank
// lines, the stipulation echo prefix, and the literal "solution
// finished" noise are dropped; everything else is printed verbatim.
func (d *dispatcher) dispatchOpaque(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(line, "ser-") || strings.HasPrefix(line, "  ser-") {
		return
	}
	if trimmed == "solution finished" {
		return
	}
	d.writeLine(line)
}

func (d *dispatcher) dispatchRecord(idx int, rec protocol.Record) dispatchResult {
	w := d.workers[idx]
	var result dispatchResult

	switch rec.Kind {
	case protocol.Progress:
		d.progress.Record(idx, rec.ProgressM, rec.ProgressK, rec.ProgressPositions)
		if depth, ok := encodeDepth(rec.ProgressM, rec.ProgressK); ok && depth > w.lastDepth {
			w.lastDepth = depth
		}
		for _, adv := range d.progress.Advance() {
			d.writeLine(fmt.Sprintf("depth %d+%d: %d positions (%.1fs elapsed)",
				adv.M, adv.K, adv.Positions, d.now().Sub(d.start).Seconds()))
		}

	case protocol.Text:
		body := strings.TrimLeft(rec.Text, " \t")
		if solutionHeader.MatchString(body) {
			d.solutions++
			if d.cap > 0 && d.solutions >= d.cap {
				result.capReached = true
			}
		}
		d.writeLine("")
		d.writeLine(rec.Text)

	case protocol.Combo:
		w.currentComboLabel = rec.Text

	case protocol.Finished, protocol.Debug, protocol.Error, protocol.Solving,
		protocol.Ready, protocol.SolutionStart, protocol.SolutionEnd,
		protocol.Time, protocol.Heartbeat, protocol.ProblemStart,
		protocol.ProblemEnd, protocol.Partial, protocol.Unknown:
		// Accepted and consumed; none of these affect aggregation
		// today, reserved for future use.
	}

	return result
}

// markFinished records that worker idx's pipe hit EOF: it stops
// blocking the progress frontier and its recorded state is retained
// for the final summary.
func (d *dispatcher) markFinished(idx int) {
	d.workers[idx].finished = true
	d.progress.MarkFinished(idx)
}

// resetWorker re-opens a previously finished slot for a helper worker
// spawned into it mid-phase: it clears finished/lastDepth/combo state
// so the slot behaves like a freshly spawned worker again.
func (d *dispatcher) resetWorker(idx int) {
	d.workers[idx] = newWorkerState()
	d.progress.Reopen(idx)
}

// recordHeavy is called by probe.go when a phase timeout fires: every
// still-running worker's current combo label becomes a heavy-combo
// record at its last reported depth.
func (d *dispatcher) recordHeavy() {
	if d.heavy == nil {
		return
	}
	for _, w := range d.workers {
		if w.finished || w.currentComboLabel == "" {
			continue
		}
		m, k := 0, 0
		if w.lastDepth >= 0 {
			m, k = decodeDepth(w.lastDepth)
		}
		d.heavy.Record(w.currentComboLabel, m, k)
	}
}
