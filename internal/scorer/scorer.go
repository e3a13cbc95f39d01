package scorer

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/model"
)

// Feature names reported in Result.Degenerate.
const (
	FeaturePopDensity  = "pop_density"
	FeatureWasteVolume = "waste_volume"
	FeatureDistTPS     = "dist_tps"
)

// Result is the outcome of scoring one batch.
type Result struct {
	// Scores is index-aligned with the input batch.
	Scores []float64
	// Degenerate lists numeric features with zero variance in the batch.
	// Their normalised values were set to 0.
	Degenerate []string
}

// Scorer computes composite scores under a fixed preset. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	preset Preset
}

// New validates p and returns a scorer bound to it.
func New(p Preset) (*Scorer, error) {
	if err := ValidatePreset(p); err != nil {
		return nil, err
	}
	return &Scorer{preset: p}, nil
}

// Preset returns the preset in effect.
func (s *Scorer) Preset() Preset { return s.preset }

// Score normalises each numeric feature over the batch and combines the
// normalised values with the road access penalty. Every vector must be
// complete and valid; an invalid vector fails the whole batch.
func (s *Scorer) Score(batch []model.FeatureVector) (Result, error) {
	n := len(batch)
	res := Result{Scores: make([]float64, n)}
	if n == 0 {
		return res, nil
	}

	pop := make([]float64, n)
	waste := make([]float64, n)
	dist := make([]float64, n)
	road := make([]float64, n)
	for i, fv := range batch {
		if err := fv.Validate(); err != nil {
			return Result{}, eris.Wrapf(err, "scorer: record %d", i)
		}
		pop[i] = fv.PopDensity
		waste[i] = fv.WasteVolume
		dist[i] = fv.DistTPS
		road[i], _ = fv.RoadAccess.Penalty()
	}

	normalized := func(name string, values []float64) []float64 {
		out, degenerate := Normalize(values)
		if degenerate {
			res.Degenerate = append(res.Degenerate, name)
		}
		return out
	}
	nPop := normalized(FeaturePopDensity, pop)
	nWaste := normalized(FeatureWasteVolume, waste)
	nDist := normalized(FeatureDistTPS, dist)

	if len(res.Degenerate) > 0 {
		zap.L().Warn("scorer: zero-variance features normalised to 0",
			zap.Strings("features", res.Degenerate),
			zap.Int("batch_size", n),
			zap.String("preset", s.preset.Name),
		)
	}

	for i := range batch {
		res.Scores[i] = s.Combine(nWaste[i], nPop[i], nDist[i], road[i])
	}
	return res, nil
}

// Combine returns the weighted sum of already normalised inputs.
func (s *Scorer) Combine(waste, pop, dist, roadPenalty float64) float64 {
	w := s.preset.Weights
	return w.Waste*waste + w.Pop*pop + w.Dist*dist + w.Road*roadPenalty
}

// Normalize applies min-max normalisation. When all values are equal the
// column carries no information, every output is 0 and degenerate is true.
func Normalize(values []float64) (out []float64, degenerate bool) {
	out = make([]float64, len(values))
	if len(values) == 0 {
		return out, false
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return out, true
	}
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out, false
}
