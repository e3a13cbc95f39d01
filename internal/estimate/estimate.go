// Package estimate synthesizes per-point population density, waste volume and
// road access from a point's zone category. Values are proxies for census and
// routing data that is not available; every draw comes from a caller-supplied
// random source so a batch can be regenerated exactly from its seed.
package estimate

import (
	"math"
	"math/rand/v2"

	"github.com/sells-group/waste-risk/internal/model"
)

// wasteBaselines maps a zone to its mean daily waste volume (kg/day).
var wasteBaselines = map[model.ZoneType]float64{
	model.ZoneMarket:      500,
	model.ZoneIndustrial:  150,
	model.ZoneEducation:   100,
	model.ZoneCampus:      100,
	model.ZoneOffice:      80,
	model.ZoneResidential: 20,
	model.ZoneTPS:         0,
	model.ZoneOther:       0,
}

// wasteNoiseRatio is the Gaussian standard deviation as a share of the baseline.
const wasteNoiseRatio = 0.2

// popRange is a half-open integer interval [Min, Max).
type popRange struct {
	Min, Max int
}

var (
	denseRange  = popRange{Min: 1000, Max: 5000}
	sparseRange = popRange{Min: 50, Max: 500}
)

// popRanges holds zones drawn from the dense range; every other zone uses sparseRange.
var popRanges = map[model.ZoneType]popRange{
	model.ZoneResidential: denseRange,
}

// Attributes is one draw of estimated values.
type Attributes struct {
	PopDensity  float64
	WasteVolume float64
	RoadAccess  model.RoadAccess
}

// WasteBaseline returns the baseline waste volume for zone. Unknown zones get 0.
func WasteBaseline(zone model.ZoneType) float64 {
	return wasteBaselines[zone]
}

// Estimator draws attributes for points. It is not safe for concurrent use
// because it advances its random source.
type Estimator struct {
	rng  *rand.Rand
	road RoadSampler
}

// New returns an Estimator drawing from rng. A nil road sampler uses Uniform.
func New(rng *rand.Rand, road RoadSampler) *Estimator {
	if road == nil {
		road = Uniform{}
	}
	return &Estimator{rng: rng, road: road}
}

// NewSeeded returns an Estimator backed by a PCG source seeded with seed.
func NewSeeded(seed uint64, road RoadSampler) *Estimator {
	return New(NewRand(seed), road)
}

// NewRand returns the deterministic generator used across batch runs.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Estimate draws waste volume, population density and road access for zone,
// in that order.
func (e *Estimator) Estimate(zone model.ZoneType) Attributes {
	waste := e.Waste(zone)
	pop := e.PopDensity(zone)
	return Attributes{
		PopDensity:  pop,
		WasteVolume: waste,
		RoadAccess:  e.road.Sample(e.rng),
	}
}

// Waste draws baseline + N(0, 0.2*baseline) for zone, clamped to >= 0.
func (e *Estimator) Waste(zone model.ZoneType) float64 {
	base := WasteBaseline(zone)
	v := base + e.rng.NormFloat64()*wasteNoiseRatio*base
	return math.Max(0, v)
}

// PopDensity draws an integer density from the zone's range.
func (e *Estimator) PopDensity(zone model.ZoneType) float64 {
	r, ok := popRanges[zone]
	if !ok {
		r = sparseRange
	}
	return float64(r.Min + e.rng.IntN(r.Max-r.Min))
}

// Road draws a road access category.
func (e *Estimator) Road() model.RoadAccess {
	return e.road.Sample(e.rng)
}

// Rand exposes the underlying generator so callers can interleave other draws
// (coordinates, noise) on the same seeded stream.
func (e *Estimator) Rand() *rand.Rand {
	return e.rng
}
