// Package refsolver is the reference Engine (internal/engine) this
// repository ships. It is not a real helpmate solver — that stays out
// of scope, an external collaborator behind an interface — it is a
// small, deterministic stand-in that exercises every hook a real
// solver would: combo iteration honouring
// a partition predicate, a real ply-1 move list (via
// github.com/freeeve/pgn/v3's legal-move generator on the starting
// position), first-move filtering of that list, and a depth-bounded
// synthetic search whose runtime is deliberately uneven so that probe
// and rebalance mode have real stragglers to find.
package refsolver

import (
	"context"
	"fmt"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/ppsolve/internal/combospace"
	"github.com/freeeve/ppsolve/internal/engine"
	"github.com/freeeve/ppsolve/internal/protocol"
)

// Engine is the reference implementation.
type Engine struct {
	forked bool

	// MaxDepthScale bounds the synthetic search's depth so tests run
	// fast; production use leaves it at the default (0 means "use
	// defaultMaxDepth").
	MaxDepthScale int
}

// New returns a ready-to-use reference engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) SetForkedWorker(forked bool) { e.forked = forked }

const defaultMaxDepth = 6

// legalFirstMoves returns the ply-1 candidate list: the legal moves
// of the standard starting position, indexed 0..len-1 in whatever
// order the generator produces them. Real chess, used only as a
// stand-in source of "an ordered list of candidate first moves" —
// nothing here depends on where that list actually comes from, only
// that it exists and can be filtered.
func legalFirstMoves() []int {
	pos := pgn.NewStartingPosition()
	moves := pgn.GenerateLegalMoves(pos)
	out := make([]int, len(moves))
	for i := range moves {
		out[i] = i
	}
	return out
}

// comboLabel renders a combo as a short human string for @@COMBO: and
// probe reporting: the scalar index leads, the way the coordinator's
// heavy-combo table keys on it, followed by a square/piece rendering
// for a human reading the status line. Pure arithmetic, not a pgn
// concern.
func comboLabel(idx, king, checker, checkSq int) string {
	return fmt.Sprintf("%d k=%s p=%d c=%s", idx, squareName(king), checker, squareName(checkSq))
}

func squareName(idx int) string {
	file := idx % 8
	rank := idx / 8
	return fmt.Sprintf("%c%d", 'a'+file, rank+1)
}

// Solve implements engine.Engine.
func (e *Engine) Solve(ctx context.Context, cfg engine.Config, emitter protocol.Emitter) error {
	_ = emitter.Solving()

	order := cfg.Predicate.Order()
	if order == "" {
		order = combospace.DefaultOrder
	}

	moves := legalFirstMoves()
	var ordinal combospace.Ordinal

	visit := func(idx int) error {
		king, checker, checkSq, err := combospace.Combo(order, idx)
		if err != nil {
			return nil //nolint: combo indices from our own iteration are always valid
		}
		return e.solveCombo(ctx, idx, king, checker, checkSq, cfg.Filter, moves, &ordinal, emitter)
	}

	if cfg.SingleCombo != nil {
		if err := visit(*cfg.SingleCombo); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return emitter.Partial()
		}
		return emitter.Finished()
	}

	for idx := 0; idx < combospace.Total; idx++ {
		if ctx.Err() != nil {
			return emitter.Partial()
		}
		if !cfg.Predicate.Owns(idx) {
			continue
		}
		if err := visit(idx); err != nil {
			return err
		}
	}
	return emitter.Finished()
}

// solveCombo runs the synthetic depth-bounded search for one combo.
// Runtime is deliberately uneven: combos with checker==0 run to twice
// the depth of everything else, so a probe-mode timeout has something
// real to catch.
func (e *Engine) solveCombo(ctx context.Context, idx, king, checker, checkSq int, filter combospace.FirstMoveFilter, moves []int, ordinal *combospace.Ordinal, emitter protocol.Emitter) error {
	if err := emitter.Combo(comboLabel(idx, king, checker, checkSq)); err != nil {
		return err
	}

	kept := filter.Apply(moves, ordinal.Next())
	if len(kept) == 0 {
		return nil
	}

	maxDepth := defaultMaxDepth
	if e.MaxDepthScale > 0 {
		maxDepth = e.MaxDepthScale
	}
	if checker == 0 {
		maxDepth *= 2
	}

	for m := 1; m <= maxDepth; m++ {
		for k, mv := range kept {
			if ctx.Err() != nil {
				return nil
			}
			positions := uint64((idx%97 + 1) * (m) * (k + 1))
			if err := emitter.Progress(m, k, positions); err != nil {
				return err
			}
			// A combo with an odd-indexed surviving move at the
			// deepest ply "finds" a synthetic solution, giving
			// callers real @@TEXT: lines to aggregate.
			if m == maxDepth && mv%2 == 1 {
				line := fmt.Sprintf("  1.%s#", syntheticLine(idx, mv))
				if err := emitter.Text(line); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func syntheticLine(idx, mv int) string {
	return fmt.Sprintf("e2-e4 e7-e5 combo%d/%d", idx, mv)
}
