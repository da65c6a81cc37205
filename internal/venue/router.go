package venue

import (
	"raptor/internal/models"
	"raptor/internal/raptorerr"
)

// Router holds the two concrete SwapRouter implementations and selects between them
// purely on the position's lifecycle state (spec.md §4.C, §8 invariant 1). It never
// infers lifecycle from price behavior or venue liquidity — an unknown state is an
// error, not a guess.
type Router struct {
	bondingCurve SwapRouter
	amm          SwapRouter
}

func NewRouter(bondingCurve, amm SwapRouter) *Router {
	return &Router{bondingCurve: bondingCurve, amm: amm}
}

// Route returns the router that owns swaps for the given lifecycle state.
func (r *Router) Route(state models.LifecycleState) (SwapRouter, error) {
	switch state {
	case models.LifecyclePreGraduation:
		return r.bondingCurve, nil
	case models.LifecyclePostGraduation:
		return r.amm, nil
	default:
		return nil, raptorerr.New(raptorerr.CodeLifecycleUnknown, "no venue for lifecycle state "+string(state))
	}
}
