// Package combospace implements the intelligent-mode combo index math
// and the partition / first-move predicates derived from it. A combo
// is the triple (king_idx, checker_idx, check_sq_idx); everything here
// is pure, side-effect-free arithmetic — there is no state beyond the
// small Ordinal counter a caller may keep itself.
package combospace

import (
	"errors"
	"fmt"
)

// Cardinalities of the three combo axes.
const (
	KingCard    = 64
	CheckerCard = 15
	CheckSqCard = 64
)

// Total is the size of the combo space: 64 * 15 * 64 = 61440.
const Total = KingCard * CheckerCard * CheckSqCard

// DefaultOrder clusters heavy combos the way Popeye's intelligent mode
// has always done by default: king varies fastest.
const DefaultOrder = "kpc"

// ErrBadOrder is returned when an order string is not a permutation
// of {k,p,c}.
var ErrBadOrder = errors.New("combospace: order must be a permutation of k, p, c")

// ErrOutOfRange is returned by Combo when index falls outside [0, Total).
var ErrOutOfRange = errors.New("combospace: index out of range")

type axis int

const (
	axisKing axis = iota
	axisChecker
	axisCheckSq
)

func (a axis) cardinality() int {
	switch a {
	case axisKing:
		return KingCard
	case axisChecker:
		return CheckerCard
	case axisCheckSq:
		return CheckSqCard
	default:
		panic("combospace: bad axis")
	}
}

// parseOrder validates order and returns the axis assigned to each
// position: [0]=fastest-varying, [1]=mid, [2]=slowest-varying.
func parseOrder(order string) ([3]axis, error) {
	var out [3]axis
	if len(order) != 3 {
		return out, fmt.Errorf("%w: %q", ErrBadOrder, order)
	}
	var seen [3]bool
	for i := 0; i < 3; i++ {
		var a axis
		switch order[i] {
		case 'k':
			a = axisKing
		case 'p':
			a = axisChecker
		case 'c':
			a = axisCheckSq
		default:
			return out, fmt.Errorf("%w: %q", ErrBadOrder, order)
		}
		if seen[a] {
			return out, fmt.Errorf("%w: %q", ErrBadOrder, order)
		}
		seen[a] = true
		out[i] = a
	}
	return out, nil
}

// ValidateOrder reports whether order is a valid partition order.
func ValidateOrder(order string) error {
	_, err := parseOrder(order)
	return err
}

// Index computes the scalar combo index for (king, checker, checkSq)
// under the given partition order: index = slowest_v*(mid*fast) +
// mid_v*fast + fast_v.
func Index(order string, king, checker, checkSq int) (int, error) {
	dims, err := parseOrder(order)
	if err != nil {
		return 0, err
	}
	values := [3]int{king, checker, checkSq}
	fast, mid, slow := dims[0], dims[1], dims[2]
	fastCard, midCard := fast.cardinality(), mid.cardinality()
	idx := values[slow]*(midCard*fastCard) + values[mid]*fastCard + values[fast]
	return idx, nil
}

// Combo is the inverse of Index: given a scalar index and order, it
// recovers (king, checker, checkSq).
func Combo(order string, index int) (king, checker, checkSq int, err error) {
	dims, err := parseOrder(order)
	if err != nil {
		return 0, 0, 0, err
	}
	if index < 0 || index >= Total {
		return 0, 0, 0, ErrOutOfRange
	}
	fast, mid, slow := dims[0], dims[1], dims[2]
	fastCard, midCard := fast.cardinality(), mid.cardinality()

	fastV := index % fastCard
	rem := index / fastCard
	midV := rem % midCard
	slowV := rem / midCard

	var values [3]int
	values[fast] = fastV
	values[mid] = midV
	values[slow] = slowV
	return values[axisKing], values[axisChecker], values[axisCheckSq], nil
}
