package combospace

// FirstMoveFilter is the ply-1 candidate-move filter a worker installs
// in addition to its combo Predicate. Exactly one of the two
// constructors below is used per worker; the zero value is the
// "unfiltered" filter (Apply is the identity), which is also the
// fallback a worker uses when the work queue can't be reached.
type FirstMoveFilter struct {
	mode firstMoveMode

	// Static.
	index, total int

	// Rotation.
	selfIndex, totalWorkers int
}

type firstMoveMode int

const (
	modeUnfiltered firstMoveMode = iota
	modeStatic
	modeRotation
)

// Static installs the fixed ply-1 filter: keep move_idx iff
// move_idx mod total == index (index is zero-indexed internally; the
// -first-move-partition N/M flag is one-indexed and converted by the
// caller, mirroring -partition's N-1 convention).
func Static(index, total int) FirstMoveFilter {
	return FirstMoveFilter{mode: modeStatic, index: index, total: total}
}

// Rotation installs the dynamic, work-queue-backed filter: at the
// target-ordinal-th ply-1 position encountered, keep move_idx iff
// (move_idx + ordinal) mod totalWorkers == selfIndex. Coverage is only
// guaranteed summed over totalWorkers consecutive ordinals — if fewer
// than totalWorkers targets are ever generated, some moves are never
// explored (see DESIGN.md); this implementation does not fall back to
// Static on its own.
func Rotation(selfIndex, totalWorkers int) FirstMoveFilter {
	return FirstMoveFilter{mode: modeRotation, selfIndex: selfIndex, totalWorkers: totalWorkers}
}

// Apply filters moves for the ply-1 target encountered at the given
// ordinal (0-based, incremented by the caller once per target — see
// Ordinal). The returned slice shares no backing array with moves.
func (f FirstMoveFilter) Apply(moves []int, ordinal int) []int {
	var out []int
	switch f.mode {
	case modeStatic:
		if f.total <= 0 {
			return append(out, moves...)
		}
		for i, mv := range moves {
			if i%f.total == f.index {
				out = append(out, mv)
			}
		}
	case modeRotation:
		if f.totalWorkers <= 0 {
			return append(out, moves...)
		}
		for i, mv := range moves {
			if (i+ordinal)%f.totalWorkers == f.selfIndex {
				out = append(out, mv)
			}
		}
	default:
		out = append(out, moves...)
	}
	return out
}

// Kind reports which rule a filter applies, for callers (e.g. the
// coordinator re-deriving worker flags) that need to distinguish the
// three constructors after the fact.
func (f FirstMoveFilter) Kind() FirstMoveKind {
	switch f.mode {
	case modeStatic:
		return FirstMoveStatic
	case modeRotation:
		return FirstMoveRotation
	default:
		return FirstMoveUnfiltered
	}
}

// StaticParams returns the (index, total) a Static filter was built
// with. Meaningless if Kind() != FirstMoveStatic.
func (f FirstMoveFilter) StaticParams() (index, total int) { return f.index, f.total }

// RotationParams returns the (selfIndex, totalWorkers) a Rotation
// filter was built with. Meaningless if Kind() != FirstMoveRotation.
func (f FirstMoveFilter) RotationParams() (selfIndex, totalWorkers int) {
	return f.selfIndex, f.totalWorkers
}

// FirstMoveKind identifies which rule a FirstMoveFilter applies.
type FirstMoveKind int

const (
	FirstMoveUnfiltered FirstMoveKind = iota
	FirstMoveStatic
	FirstMoveRotation
)

// Ordinal is the per-worker counter a Rotation filter needs: each time
// the engine reaches ply 1 for a new target position it calls Next to
// get the ordinal to pass to Apply.
type Ordinal struct {
	n int
}

// Next returns the next ordinal, starting at 0.
func (o *Ordinal) Next() int {
	v := o.n
	o.n++
	return v
}
