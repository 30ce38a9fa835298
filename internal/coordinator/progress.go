package coordinator

// depthTableSize bounds last_depth encoding m·100+k to m,k < 100 — 10
// 000 slots per worker. A deeper report than that is silently dropped
// (see DESIGN.md) rather than panicking or growing the table.
const depthTableSize = 10000

func encodeDepth(m, k int) (int, bool) {
	if m < 0 || k < 0 || m >= 100 || k >= 100 {
		return 0, false
	}
	return m*100 + k, true
}

func decodeDepth(d int) (m, k int) { return d / 100, d % 100 }

// AdvancedDepth is one line the aggregated progress frontier emits.
type AdvancedDepth struct {
	M, K      int
	Positions uint64
}

// progressAggregator implements the aggregated progress frontier: one
// user-facing line per depth, only once every non-finished worker has
// reported at least that far.
//
// A worker's lastDepth starts at -1 ("hasn't reported anything yet"),
// which is deliberately less than depth 0 so a worker that has not
// spoken yet blocks the frontier rather than being skipped. touched
// records which depths any worker has actually written to, so Advance
// never emits a line for a depth nobody reported, even though the
// frontier conceptually sweeps a dense integer range between the last
// printed depth and the new minimum.
type progressAggregator struct {
	n                int
	positionsAtDepth [][]uint64 // lazily allocated per worker
	lastDepth        []int
	finished         []bool
	touched          []bool
	lastPrintedDepth int
	show             bool
}

func newProgressAggregator(n int, show bool) *progressAggregator {
	a := &progressAggregator{
		n:                n,
		positionsAtDepth: make([][]uint64, n),
		lastDepth:        make([]int, n),
		finished:         make([]bool, n),
		touched:          make([]bool, depthTableSize),
		lastPrintedDepth: -1,
		show:             show,
	}
	for i := range a.lastDepth {
		a.lastDepth[i] = -1
	}
	return a
}

// Record applies one PROGRESS record from worker idx. m,k outside
// [0,100) are silently dropped — see DESIGN.md.
func (a *progressAggregator) Record(idx, m, k int, positions uint64) {
	d, ok := encodeDepth(m, k)
	if !ok {
		return
	}
	if a.positionsAtDepth[idx] == nil {
		a.positionsAtDepth[idx] = make([]uint64, depthTableSize)
	}
	a.positionsAtDepth[idx][d] = positions
	a.touched[d] = true
	if d > a.lastDepth[idx] {
		a.lastDepth[idx] = d
	}
}

func (a *progressAggregator) MarkFinished(idx int) { a.finished[idx] = true }

// Reopen clears finished and lastDepth for idx so a helper spawned
// into a previously-finished slot blocks the frontier again until it
// reports its own progress, exactly like a freshly spawned worker.
func (a *progressAggregator) Reopen(idx int) {
	a.finished[idx] = false
	a.lastDepth[idx] = -1
	a.positionsAtDepth[idx] = nil
}

// Advance returns every newly-crossed depth's summary, in increasing
// depth order, advancing lastPrintedDepth as it goes. Returns nil if
// show is false (the "gate on show-move-numbers" rule) or if any
// non-finished worker has not yet reported anything.
func (a *progressAggregator) Advance() []AdvancedDepth {
	if !a.show {
		return nil
	}
	minDepth := -1
	sawActive := false
	for i := 0; i < a.n; i++ {
		if a.finished[i] {
			continue
		}
		sawActive = true
		if minDepth == -1 || a.lastDepth[i] < minDepth {
			minDepth = a.lastDepth[i]
		}
	}
	if !sawActive || minDepth < 0 || minDepth <= a.lastPrintedDepth {
		return nil
	}

	var out []AdvancedDepth
	for d := a.lastPrintedDepth + 1; d <= minDepth; d++ {
		if !a.touched[d] {
			continue
		}
		var sum uint64
		for i := 0; i < a.n; i++ {
			if a.positionsAtDepth[i] != nil {
				sum += a.positionsAtDepth[i][d]
			}
		}
		m, k := decodeDepth(d)
		out = append(out, AdvancedDepth{M: m, K: k, Positions: sum})
	}
	a.lastPrintedDepth = minDepth
	return out
}
