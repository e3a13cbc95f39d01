package estimate

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// RoadSampler assigns a road access category. Implementations stand in for a
// routing-based measurement and may be swapped without changing callers.
type RoadSampler interface {
	Sample(rng *rand.Rand) model.RoadAccess
}

// Uniform draws each road access category with equal probability.
type Uniform struct{}

// Sample implements RoadSampler.
func (Uniform) Sample(rng *rand.Rand) model.RoadAccess {
	all := model.RoadAccesses()
	return all[rng.IntN(len(all))]
}

// Weighted draws road access from a fixed categorical distribution.
type Weighted struct {
	order []model.RoadAccess
	cum   []float64
}

// DefaultRoadWeights is the distribution used for synthetic datasets.
var DefaultRoadWeights = map[model.RoadAccess]float64{
	model.RoadPoor:     0.2,
	model.RoadModerate: 0.5,
	model.RoadGood:     0.3,
}

// NewWeighted validates weights and returns a sampler. Weights must be
// non-negative, cover only known categories and sum to 1.
func NewWeighted(weights map[model.RoadAccess]float64) (*Weighted, error) {
	w := &Weighted{}
	var sum float64
	// Iterate in the canonical order so sampling is reproducible.
	for _, r := range []model.RoadAccess{model.RoadPoor, model.RoadModerate, model.RoadGood} {
		p, ok := weights[r]
		if !ok {
			continue
		}
		if p < 0 || math.IsNaN(p) {
			return nil, eris.Errorf("estimate: road weight for %s must be >= 0", r)
		}
		sum += p
		w.order = append(w.order, r)
		w.cum = append(w.cum, sum)
	}
	if len(w.order) != len(weights) {
		return nil, eris.New("estimate: road weights contain unknown categories")
	}
	if math.Abs(sum-1) > 1e-9 {
		return nil, eris.Errorf("estimate: road weights must sum to 1, got %g", sum)
	}
	return w, nil
}

// Sample implements RoadSampler.
func (w *Weighted) Sample(rng *rand.Rand) model.RoadAccess {
	u := rng.Float64()
	for i, c := range w.cum {
		if u < c {
			return w.order[i]
		}
	}
	return w.order[len(w.order)-1]
}
