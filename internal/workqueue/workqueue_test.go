package workqueue

import (
	"path/filepath"
	"testing"
)

func TestAcquireWorkerIndexDistinctAndMonotone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.bin")
	const w = 5
	if err := Initialise(path, w); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	seen := make(map[int]bool)
	for i := 0; i < w; i++ {
		f := Open(path) // a fresh handle per simulated worker process
		idx, ok := f.AcquireWorkerIndex()
		if !ok {
			t.Fatalf("worker %d: AcquireWorkerIndex failed", i)
		}
		if idx != i {
			t.Fatalf("worker %d: got index %d, want %d (counter should be monotone)", i, idx, i)
		}
		if seen[idx] {
			t.Fatalf("index %d handed out twice", idx)
		}
		seen[idx] = true
	}

	// P5: counter reaches exactly W after every worker acquires.
	counter, err := ReadCounter(path)
	if err != nil {
		t.Fatalf("ReadCounter: %v", err)
	}
	if counter != w {
		t.Fatalf("counter = %d, want %d", counter, w)
	}
}

func TestAcquireWorkerIndexCachesFirstCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.bin")
	if err := Initialise(path, 3); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	f := Open(path)
	first, ok := f.AcquireWorkerIndex()
	if !ok {
		t.Fatalf("first AcquireWorkerIndex failed")
	}
	for i := 0; i < 3; i++ {
		got, ok := f.AcquireWorkerIndex()
		if !ok || got != first {
			t.Fatalf("call %d: got (%d,%v), want (%d,true) — caching is the contract", i, got, ok, first)
		}
	}

	counter, err := ReadCounter(path)
	if err != nil {
		t.Fatalf("ReadCounter: %v", err)
	}
	if counter != 1 {
		t.Fatalf("counter = %d, want 1 (repeated calls must not touch the file)", counter)
	}
}

func TestReadTotal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.bin")
	if err := Initialise(path, 42); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	f := Open(path)
	total, err := f.ReadTotal()
	if err != nil {
		t.Fatalf("ReadTotal: %v", err)
	}
	if total != 42 {
		t.Fatalf("total = %d, want 42", total)
	}
}

func TestAcquireWorkerIndexFallsBackOnMissingFile(t *testing.T) {
	f := Open(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	_, ok := f.AcquireWorkerIndex()
	if ok {
		t.Fatalf("expected failure (and thus unfiltered fallback) for a missing queue file")
	}
}

func TestDestroyRemovesFileAndToleratesMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.bin")
	if err := Initialise(path, 1); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if err := Destroy(path); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := Destroy(path); err != nil {
		t.Fatalf("second Destroy should tolerate a missing file, got %v", err)
	}
}

func TestExhaustedQueueFailsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.bin")
	if err := Initialise(path, 1); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if _, ok := Open(path).AcquireWorkerIndex(); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if _, ok := Open(path).AcquireWorkerIndex(); ok {
		t.Fatalf("second acquire against an exhausted queue should fail, not hand out an out-of-range index")
	}
}
