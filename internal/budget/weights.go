// Package budget allocates spend across ad sets and plans bidding, pacing,
// learning-phase protection, scaling rules and risks for each of them.
package budget

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/model"
)

// rawWeight is the unnormalized share of an ad set type under an approach.
func rawWeight(a model.Approach, t model.AdSetType) (float64, error) {
	switch a {
	case model.ApproachRichData:
		switch t {
		case model.AdSetTypeRetargeting:
			return 0.4, nil
		case model.AdSetTypeLookalike:
			return 0.3, nil
		case model.AdSetTypeInterest:
			return 0.2, nil
		default:
			return 0.1, nil
		}
	case model.ApproachHybrid:
		if t == model.AdSetTypeBroad {
			return 0.4, nil
		}
		// interest and every other type share the same weight
		return 0.3, nil
	case model.ApproachDiscoveryFirst:
		if t == model.AdSetTypeBroad {
			return 0.6, nil
		}
		return 0.4, nil
	}
	return 0, eris.Errorf("budget: unknown approach %q", a)
}

// Weights returns one share per ad set type, normalized to sum to 1.
func Weights(a model.Approach, types []model.AdSetType) ([]float64, error) {
	out := make([]float64, len(types))
	var sum float64
	for i, t := range types {
		w, err := rawWeight(a, t)
		if err != nil {
			return nil, err
		}
		out[i] = w
		sum += w
	}
	if sum == 0 {
		return out, nil
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}
