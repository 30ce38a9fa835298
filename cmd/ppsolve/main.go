package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/freeeve/ppsolve/internal/combospace"
	"github.com/freeeve/ppsolve/internal/coordinator"
	"github.com/freeeve/ppsolve/internal/engine"
	"github.com/freeeve/ppsolve/internal/engine/refsolver"
	"github.com/freeeve/ppsolve/internal/logx"
	"github.com/freeeve/ppsolve/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		parallel       = flag.Int("parallel", 1, "N in [1,1024]: spawn N workers, coordinator mode")
		workerMode     = flag.Bool("worker", false, "run as a forked worker child, speaking the @@ protocol")
		partition      = flag.String("partition", "", "N/M, 1-indexed: worker-side combo assignment")
		partitionRange = flag.String("partition-range", "", "start/stride/max: worker-side combo assignment")
		partitionOrder = flag.String("partition-order", combospace.DefaultOrder, "3-letter permutation of kpc")
		firstMovePart  = flag.String("first-move-partition", "", "N/M: worker-side static ply-1 filter")
		firstMoveQueue = flag.Int("first-move-queue", 0, "N: coordinator spawns N workers sharing a first-move queue")
		workerQueue    = flag.String("worker-queue-path", "", "internal: queue file path (set by the coordinator, not users)")
		workerTotal    = flag.Int("worker-total", 0, "internal: queue worker count (set by the coordinator)")
		singleCombo    = flag.Int("single-combo", -1, "idx in [0,61440): restrict to one combo")
		probe          = flag.String("probe", "", "run probe mode; optional T seconds (default 60, max 3600)")
		rebalance      = flag.String("rebalance", "", "run rebalance mode; optional T seconds (default 60)")
		solutionCap    = flag.Int("cap", 0, "global solution cap; 0 means unlimited")
		sessionLog     = flag.String("session-log", "", "path for a zstd-compressed session archive")
		logLevel       = flag.String("log-level", "info", "debug|info|warn|error")
		engineName     = flag.String("engine", "reference", "engine.Engine implementation to use")
	)
	flag.Parse()

	logger := logx.NewLogger(*logLevel)

	eng, err := selectEngine(*engineName)
	if err != nil {
		logger.Error().Err(err).Msg("engine")
		return 1
	}

	ctx, caught, cancel := notifyContextWithSignal(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *workerMode {
		cfg, err := workerConfigFromFlags(*partition, *partitionRange, *partitionOrder,
			*firstMovePart, *workerQueue, *workerTotal, *singleCombo)
		if err != nil {
			logger.Error().Err(err).Msg("worker flags")
			return 1
		}
		if err := worker.Run(ctx, cfg, os.Stdout, eng); err != nil {
			logger.Error().Err(err).Msg("worker")
			return 1
		}
		return 0
	}

	n := *parallel
	queuePath := ""
	if *firstMoveQueue > 0 {
		n = *firstMoveQueue
		queuePath = filepath.Join(os.TempDir(), fmt.Sprintf("ppsolve-queue-%d.bin", os.Getpid()))
	}

	coordCfg := coordinator.Config{
		N:              n,
		PartitionOrder: *partitionOrder,
		Cap:            *solutionCap,
		ShowProgress:   true,
		QueuePath:      queuePath,
		SessionLogPath: *sessionLog,
		Out:            os.Stdout,
		StatusOut:      os.Stderr,
		Log:            logger,
		Spawner: &coordinator.ExecSpawner{
			BinaryPath: exePath(),
			ExtraArgs:  []string{"-engine", *engineName, "-log-level", *logLevel},
		},
	}
	c := coordinator.New(coordCfg)
	defer c.Close()

	switch {
	case *probe != "":
		d, err := parseSeconds(*probe)
		if err != nil {
			logger.Error().Err(err).Msg("-probe")
			return 1
		}
		if err := c.Probe(ctx, d); err != nil {
			logger.Error().Err(err).Msg("probe")
			return 1
		}
	case *rebalance != "":
		d, err := parseSeconds(*rebalance)
		if err != nil {
			logger.Error().Err(err).Msg("-rebalance")
			return 1
		}
		if err := c.Rebalance(ctx, d); err != nil {
			logger.Error().Err(err).Msg("rebalance")
			return 1
		}
	default:
		if err := c.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("run")
			return 1
		}
	}

	select {
	case sig := <-caught:
		return interruptExitCode(sig)
	default:
		return 0
	}
}

func selectEngine(name string) (engine.Engine, error) {
	switch name {
	case "", "reference":
		return refsolver.New(), nil
	default:
		return nil, fmt.Errorf("unknown -engine %q", name)
	}
}

func workerConfigFromFlags(partition, partitionRange, partitionOrder, firstMovePart, workerQueue string, workerTotal, singleCombo int) (worker.Config, error) {
	var cfg worker.Config
	cfg.PartitionOrder = partitionOrder

	switch {
	case partitionRange != "":
		start, stride, max, err := parseTriple(partitionRange)
		if err != nil {
			return cfg, fmt.Errorf("-partition-range: %w", err)
		}
		strided, err := combospace.NewStrided(start, stride, max)
		if err != nil {
			return cfg, fmt.Errorf("-partition-range: %w", err)
		}
		pred, err := combospace.NewPredicate(partitionOrder, strided)
		if err != nil {
			return cfg, fmt.Errorf("-partition-order: %w", err)
		}
		cfg.Partition = pred
	case partition != "":
		n, m, err := parsePair(partition)
		if err != nil {
			return cfg, fmt.Errorf("-partition: %w", err)
		}
		simple, err := combospace.NewSimple(n, m)
		if err != nil {
			return cfg, fmt.Errorf("-partition: %w", err)
		}
		pred, err := combospace.NewPredicate(partitionOrder, simple.Strided())
		if err != nil {
			return cfg, fmt.Errorf("-partition-order: %w", err)
		}
		cfg.Partition = pred
	}

	switch {
	case workerQueue != "":
		cfg.QueuePath = workerQueue
		cfg.TotalWorkers = workerTotal
	case firstMovePart != "":
		n, m, err := parsePair(firstMovePart)
		if err != nil {
			return cfg, fmt.Errorf("-first-move-partition: %w", err)
		}
		cfg.FirstMove = combospace.Static(n-1, m)
	}

	if singleCombo >= 0 {
		v := singleCombo
		cfg.SingleCombo = &v
	}
	return cfg, nil
}

func parsePair(s string) (n, m int, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected N/M, got %q", s)
	}
	n, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return n, m, nil
}

func parseTriple(s string) (a, b, c int, err error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected start/stride/max, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, err
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}
