package renderSession

import (
	"github.com/maxsupermanhd/WebSchem/blockModel"
)

// Random is the part of math/rand the session draws from.
type Random interface {
	Float64() float64
}

// PickWeighted chooses an option with probability weight/total given a uniform
// r in [0, 1). The result is always a valid index.
func PickWeighted(options []blockModel.ModelHolder, r float64) int {
	if len(options) <= 1 {
		return 0
	}
	total := 0
	for _, o := range options {
		total += o.EffectiveWeight()
	}
	target := r * float64(total)
	acc := 0.0
	for i, o := range options {
		acc += float64(o.EffectiveWeight())
		if target < acc {
			return i
		}
	}
	return len(options) - 1
}

// pickAll draws one option per group.
func pickAll(groups []blockModel.HolderSet, rnd Random) []int {
	ret := make([]int, len(groups))
	for i, g := range groups {
		opts := g.Options()
		if len(opts) > 1 {
			ret[i] = PickWeighted(opts, rnd.Float64())
		}
	}
	return ret
}
