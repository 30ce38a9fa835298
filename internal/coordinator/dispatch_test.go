package coordinator

import (
	"bytes"
	"strings"
	"testing"
)

func TestDispatchFrameProgressUpdatesWorkerLastDepth(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "@@PROGRESS:2+3:100")
	if d.workers[0].lastDepth != 203 {
		t.Fatalf("workers[0].lastDepth = %d, want 203", d.workers[0].lastDepth)
	}
}

func TestDispatchFrameTextPrintsWithLeadingBlankLine(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "@@TEXT:  1.e2-e4 e7-e5 #")
	want := "\n  1.e2-e4 e7-e5 #\n"
	if out.String() != want {
		t.Fatalf("out = %q, want %q", out.String(), want)
	}
}

func TestDispatchFrameTextCountsSolutionHeaders(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 1, false, &out)
	res := d.DispatchFrame(0, "@@TEXT:  1.e2-e4 e7-e5 #")
	if !res.capReached {
		t.Fatalf("capReached = false, want true once cap 1 is hit")
	}
	if d.solutions != 1 {
		t.Fatalf("solutions = %d, want 1", d.solutions)
	}
}

func TestDispatchFrameTextIgnoresNonSolutionLines(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 1, false, &out)
	res := d.DispatchFrame(0, "@@TEXT:no solution here")
	if res.capReached {
		t.Fatalf("capReached = true for a TEXT line with no solution header")
	}
	if d.solutions != 0 {
		t.Fatalf("solutions = %d, want 0", d.solutions)
	}
}

func TestDispatchFrameComboRecordsCurrentLabel(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "@@COMBO:30212 k=e4 p=3 c=g7")
	if d.workers[0].currentComboLabel != "30212 k=e4 p=3 c=g7" {
		t.Fatalf("currentComboLabel = %q", d.workers[0].currentComboLabel)
	}
}

func TestDispatchOpaqueSuppressesNoiseLines(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "")
	d.DispatchFrame(0, "ser-h#2")
	d.DispatchFrame(0, "  ser-h#2")
	d.DispatchFrame(0, "solution finished")
	if out.Len() != 0 {
		t.Fatalf("out = %q, want empty (all suppressed)", out.String())
	}
}

func TestDispatchOpaquePassesThroughOtherLines(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "some diagnostic from the solver")
	if !strings.Contains(out.String(), "some diagnostic from the solver") {
		t.Fatalf("out = %q, want the opaque line passed through", out.String())
	}
}

func TestDispatchFrameMalformedFrameAppliesProgressThenPrintsTrail(t *testing.T) {
	// Mirrors the malformed-frame scenario: the decoder finds the @@
	// marker wherever it starts and still parses a trailing @@ record
	// inside a noisy frame; anything genuinely opaque passes through.
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "XYZ@@PROGRESS:2+3:100")
	if d.workers[0].lastDepth != 203 {
		t.Fatalf("lastDepth = %d, want 203 even with leading noise", d.workers[0].lastDepth)
	}
	d.DispatchFrame(0, "TRAIL")
	if !strings.Contains(out.String(), "TRAIL") {
		t.Fatalf("out = %q, want TRAIL printed verbatim", out.String())
	}
}

func TestMarkFinishedStopsBlockingProgressFrontier(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(2, 0, true, &out)
	d.markFinished(1)
	d.DispatchFrame(0, "@@PROGRESS:3+0:9")
	if !strings.Contains(out.String(), "depth 3+0: 9 positions") {
		t.Fatalf("out = %q, want an aggregated line once the only other worker is finished", out.String())
	}
}

func TestResetWorkerClearsStateForHelperReuse(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(1, 0, false, &out)
	d.DispatchFrame(0, "@@COMBO:100 k=a1 p=0 c=a1")
	d.DispatchFrame(0, "@@PROGRESS:1+0:1")
	d.markFinished(0)

	d.resetWorker(0)
	if d.workers[0].finished {
		t.Fatalf("workers[0].finished = true after resetWorker")
	}
	if d.workers[0].lastDepth != -1 {
		t.Fatalf("workers[0].lastDepth = %d, want -1 after resetWorker", d.workers[0].lastDepth)
	}
	if d.workers[0].currentComboLabel != "" {
		t.Fatalf("workers[0].currentComboLabel = %q, want empty after resetWorker", d.workers[0].currentComboLabel)
	}
}

func TestRecordHeavySkipsFinishedAndLabellessWorkers(t *testing.T) {
	var out bytes.Buffer
	d := newDispatcher(2, 0, false, &out)
	d.heavy = newHeavyTable()

	d.DispatchFrame(0, "@@COMBO:30212 k=e4 p=3 c=g7")
	d.DispatchFrame(0, "@@PROGRESS:1+14:5")
	d.markFinished(1) // finished worker must never contribute a heavy record

	d.recordHeavy()

	got := d.heavy.Sorted()
	if len(got) != 1 {
		t.Fatalf("Sorted() len = %d, want 1", len(got))
	}
	if got[0].key != "30212" || got[0].maxDepth != 114 {
		t.Fatalf("Sorted()[0] = %+v, want key=30212 maxDepth=114", got[0])
	}
}

type fakeSink struct {
	lines []string
}

func (f *fakeSink) WriteLine(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func TestDispatcherTeesOutputIntoSessionLog(t *testing.T) {
	var out bytes.Buffer
	sink := &fakeSink{}
	d := newDispatcher(1, 0, false, &out)
	d.log = sink

	d.DispatchFrame(0, "@@TEXT:  1.e2-e4 e7-e5 #")
	if len(sink.lines) != 2 { // the leading blank line, then the solution line
		t.Fatalf("sink.lines = %v, want 2 entries", sink.lines)
	}
	if sink.lines[1] != "  1.e2-e4 e7-e5 #" {
		t.Fatalf("sink.lines[1] = %q", sink.lines[1])
	}
}
