// Package workqueue implements the shared, flock-guarded counter file
// that backs first-move-queue mode: a fixed 8-byte layout (counter,
// then total worker count W), created by the coordinator, mutated by
// workers under an advisory exclusive lock, destroyed by the
// coordinator once every child has been reaped.
//
// Failure here is deliberately non-fatal: a worker that can't reach
// the file falls back to an unfiltered search rather than stalling or
// crashing.
package workqueue

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const fileSize = 8

// Initialise creates the work-queue file at path with counter=0 and
// total=w. It overwrites any existing file at path — the coordinator
// is the sole creator, called once before any worker is spawned.
func Initialise(path string, w int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("workqueue: create %s: %w", path, err)
	}
	defer f.Close()

	var buf [fileSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], 0)
	binary.NativeEndian.PutUint32(buf[4:8], uint32(w))
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("workqueue: write %s: %w", path, err)
	}
	return nil
}

// Destroy unlinks the work-queue file. Called by the coordinator after
// every child has been reaped; a missing file is not an error.
func Destroy(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workqueue: remove %s: %w", path, err)
	}
	return nil
}

// File is a worker's handle onto the work-queue file. Each worker
// process opens its own File; construct it with Open.
type File struct {
	path string

	cached    bool
	cachedIdx int
}

// Open returns a handle onto the work-queue file at path. It does not
// touch the file yet — that happens lazily on first AcquireWorkerIndex
// or ReadTotal call.
func Open(path string) *File {
	return &File{path: path}
}

// AcquireWorkerIndex atomically reads the counter, writes counter+1,
// and returns the old value as this worker's index. The first
// successful call's result is cached on f; every subsequent call
// returns that cached value without touching the file again — this
// caching is part of the contract, not an optimisation.
//
// ok is false if the lock or the read/write failed (or the queue is
// already exhausted); the caller must then fall back to an unfiltered
// search.
func (f *File) AcquireWorkerIndex() (index int, ok bool) {
	if f.cached {
		return f.cachedIdx, true
	}
	idx, err := f.acquire()
	if err != nil {
		return 0, false
	}
	f.cachedIdx = idx
	f.cached = true
	return idx, true
}

func (f *File) acquire() (int, error) {
	handle, err := os.OpenFile(f.path, os.O_RDWR, 0o644)
	if err != nil {
		return 0, fmt.Errorf("workqueue: open %s: %w", f.path, err)
	}
	defer handle.Close()

	if err := unix.Flock(int(handle.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("workqueue: lock %s: %w", f.path, err)
	}
	defer unix.Flock(int(handle.Fd()), unix.LOCK_UN)

	var buf [fileSize]byte
	if _, err := handle.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("workqueue: read %s: %w", f.path, err)
	}
	counter := binary.NativeEndian.Uint32(buf[0:4])
	total := binary.NativeEndian.Uint32(buf[4:8])
	if counter >= total {
		return 0, fmt.Errorf("workqueue: counter %d already reached total %d", counter, total)
	}

	binary.NativeEndian.PutUint32(buf[0:4], counter+1)
	if _, err := handle.WriteAt(buf[0:4], 0); err != nil {
		return 0, fmt.Errorf("workqueue: write %s: %w", f.path, err)
	}
	return int(counter), nil
}

// ReadTotal returns W, the total worker count written at Initialise
// time.
func (f *File) ReadTotal() (int, error) {
	handle, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("workqueue: open %s: %w", f.path, err)
	}
	defer handle.Close()

	if err := unix.Flock(int(handle.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("workqueue: lock %s: %w", f.path, err)
	}
	defer unix.Flock(int(handle.Fd()), unix.LOCK_UN)

	var buf [fileSize]byte
	if _, err := handle.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("workqueue: read %s: %w", f.path, err)
	}
	return int(binary.NativeEndian.Uint32(buf[4:8])), nil
}

// ReadCounter returns the current counter value, which equals W once
// every worker has successfully acquired an index. Only tests call it;
// workers never need it.
func ReadCounter(path string) (int, error) {
	handle, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("workqueue: open %s: %w", path, err)
	}
	defer handle.Close()

	if err := unix.Flock(int(handle.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("workqueue: lock %s: %w", path, err)
	}
	defer unix.Flock(int(handle.Fd()), unix.LOCK_UN)

	var buf [fileSize]byte
	if _, err := handle.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("workqueue: read %s: %w", path, err)
	}
	return int(binary.NativeEndian.Uint32(buf[0:4])), nil
}
