package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/freeeve/ppsolve/internal/combospace"
)

func TestParsePair(t *testing.T) {
	n, m, err := parsePair("2/4")
	if err != nil {
		t.Fatalf("parsePair: %v", err)
	}
	if n != 2 || m != 4 {
		t.Fatalf("parsePair = (%d,%d), want (2,4)", n, m)
	}
	if _, _, err := parsePair("bad"); err == nil {
		t.Fatalf("parsePair(%q) err = nil, want an error", "bad")
	}
	if _, _, err := parsePair("x/4"); err == nil {
		t.Fatalf("parsePair(%q) err = nil, want an error", "x/4")
	}
}

func TestParseTriple(t *testing.T) {
	a, b, c, err := parseTriple("0/4/61440")
	if err != nil {
		t.Fatalf("parseTriple: %v", err)
	}
	if a != 0 || b != 4 || c != 61440 {
		t.Fatalf("parseTriple = (%d,%d,%d), want (0,4,61440)", a, b, c)
	}
	if _, _, _, err := parseTriple("1/2"); err == nil {
		t.Fatalf("parseTriple(%q) err = nil, want an error", "1/2")
	}
}

func TestParseSecondsEmptyMeansUseDefault(t *testing.T) {
	d, err := parseSeconds("")
	if err != nil {
		t.Fatalf("parseSeconds: %v", err)
	}
	if d != 0 {
		t.Fatalf("parseSeconds(\"\") = %v, want 0", d)
	}
}

func TestParseSecondsParsesAnInteger(t *testing.T) {
	d, err := parseSeconds("90")
	if err != nil {
		t.Fatalf("parseSeconds: %v", err)
	}
	if d != 90*time.Second {
		t.Fatalf("parseSeconds(\"90\") = %v, want 90s", d)
	}
}

func TestParseSecondsRejectsGarbage(t *testing.T) {
	if _, err := parseSeconds("soon"); err == nil {
		t.Fatalf("parseSeconds(%q) err = nil, want an error", "soon")
	}
}

func TestSelectEngineKnowsReferenceAndRejectsUnknown(t *testing.T) {
	if _, err := selectEngine(""); err != nil {
		t.Fatalf("selectEngine(\"\"): %v", err)
	}
	if _, err := selectEngine("reference"); err != nil {
		t.Fatalf("selectEngine(\"reference\"): %v", err)
	}
	if _, err := selectEngine("nonexistent"); err == nil {
		t.Fatalf("selectEngine(\"nonexistent\") err = nil, want an error")
	}
}

func TestWorkerConfigFromFlagsPartitionRange(t *testing.T) {
	cfg, err := workerConfigFromFlags("", "1/4/61440", combospace.DefaultOrder, "", "", 0, -1)
	if err != nil {
		t.Fatalf("workerConfigFromFlags: %v", err)
	}
	if !cfg.Partition.Owns(1) || cfg.Partition.Owns(0) {
		t.Fatalf("cfg.Partition assignment did not round-trip -partition-range 1/4/61440")
	}
	if cfg.SingleCombo != nil {
		t.Fatalf("cfg.SingleCombo = %v, want nil when -single-combo is unset", cfg.SingleCombo)
	}
}

func TestWorkerConfigFromFlagsPartitionNM(t *testing.T) {
	cfg, err := workerConfigFromFlags("2/4", "", combospace.DefaultOrder, "", "", 0, -1)
	if err != nil {
		t.Fatalf("workerConfigFromFlags: %v", err)
	}
	if !cfg.Partition.Owns(1) { // N=2 one-indexed -> Strided{Start:1, Stride:4}
		t.Fatalf("cfg.Partition did not own index 1 for -partition 2/4")
	}
}

func TestWorkerConfigFromFlagsQueuePathTakesPriorityOverFirstMovePartition(t *testing.T) {
	cfg, err := workerConfigFromFlags("", "", combospace.DefaultOrder, "1/2", "/tmp/q.bin", 4, -1)
	if err != nil {
		t.Fatalf("workerConfigFromFlags: %v", err)
	}
	if cfg.QueuePath != "/tmp/q.bin" || cfg.TotalWorkers != 4 {
		t.Fatalf("cfg = %+v, want QueuePath=/tmp/q.bin TotalWorkers=4", cfg)
	}
}

func TestNotifyContextWithSignalCapturesWhichSignalFired(t *testing.T) {
	ctx, caught, cancel := notifyContextWithSignal(context.Background(), syscall.SIGUSR1)
	defer cancel()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("ctx was never cancelled after the signal fired")
	}

	select {
	case sig := <-caught:
		if sig != syscall.SIGUSR1 {
			t.Fatalf("caught = %v, want SIGUSR1", sig)
		}
	default:
		t.Fatal("caught had nothing buffered once ctx.Done() was observed")
	}
}

func TestInterruptExitCodeMatchesConventionalSignalNumbers(t *testing.T) {
	if got := interruptExitCode(syscall.SIGINT); got != 130 {
		t.Fatalf("interruptExitCode(SIGINT) = %d, want 130", got)
	}
	if got := interruptExitCode(syscall.SIGTERM); got != 143 {
		t.Fatalf("interruptExitCode(SIGTERM) = %d, want 143", got)
	}
}

func TestWorkerConfigFromFlagsSingleCombo(t *testing.T) {
	cfg, err := workerConfigFromFlags("", "", combospace.DefaultOrder, "", "", 0, 42)
	if err != nil {
		t.Fatalf("workerConfigFromFlags: %v", err)
	}
	if cfg.SingleCombo == nil || *cfg.SingleCombo != 42 {
		t.Fatalf("cfg.SingleCombo = %v, want *42", cfg.SingleCombo)
	}
}
