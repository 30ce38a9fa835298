// Package engine defines the seam between the parallel coordination
// core and the chess solver itself, which is an external collaborator
// behind this interface rather than something this repository
// implements. Nothing in this package knows how to solve a helpmate;
// it only knows how a worker drives whatever does.
package engine

import (
	"context"

	"github.com/freeeve/ppsolve/internal/combospace"
	"github.com/freeeve/ppsolve/internal/protocol"
)

// Config is everything a worker's installed Engine needs to know
// about its slice of the search space.
type Config struct {
	Predicate combospace.Predicate
	Filter    combospace.FirstMoveFilter

	// SingleCombo restricts the search to one combo index, used with
	// -single-combo alongside -first-move-partition/-first-move-queue.
	// Nil means "iterate the whole predicate-admitted space".
	SingleCombo *int
}

// Engine is the out-of-scope collaborator. internal/worker drives one;
// internal/engine/refsolver is the only implementation this repository
// ships, used both as the default `-engine reference` and as the test
// fixture for internal/coordinator and internal/worker.
type Engine interface {
	// SetForkedWorker tells the engine it is running as a forked
	// worker: suppress greetings/board diagrams, since its protocol
	// emitter is now the pipe to the coordinator, not a terminal.
	SetForkedWorker(forked bool)

	// Solve drives the forward search to completion over the combos
	// cfg admits, filtering each ply-1 move list it generates through
	// cfg.Filter, and emitting protocol records to emitter. It returns
	// when the search is exhausted or ctx is done — whichever first.
	Solve(ctx context.Context, cfg Config, emitter protocol.Emitter) error
}
