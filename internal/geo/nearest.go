// Package geo derives spatial features for scoring: the reference facility set
// and each point's distance to its nearest facility.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/sells-group/waste-risk/internal/model"
)

const (
	// MetersPerDegree converts planar degree distances to meters. This is a
	// small-extent approximation; it ignores the longitude shrink with latitude
	// and is not geodesically exact.
	MetersPerDegree = 111000.0

	// FallbackDistanceMeters is the sentinel returned when no reference
	// facility exists at all. It is not a measurement.
	FallbackDistanceMeters = 2000.0

	// MinPrimaryReferences is the number of TPS points required before they are
	// trusted as the reference set on their own.
	MinPrimaryReferences = 5
)

// NearestDistance returns the distance in meters from p to the closest member
// of refs. The second result is false when refs is empty and the fallback
// sentinel was returned instead of a measured value.
func NearestDistance(p orb.Point, refs []orb.Point) (float64, bool) {
	if len(refs) == 0 {
		return FallbackDistanceMeters, false
	}

	minDeg := math.Inf(1)
	for _, r := range refs {
		if d := planar.Distance(p, r); d < minDeg {
			minDeg = d
		}
	}
	return minDeg * MetersPerDegree, true
}

// ReferenceSource records which rule produced a reference set.
type ReferenceSource string

const (
	ReferenceTPS    ReferenceSource = "tps"
	ReferenceMarket ReferenceSource = "market_fallback"
	ReferenceNone   ReferenceSource = "none"
)

// ReferenceSet is the collection of facility points distances are measured to.
type ReferenceSet struct {
	Source ReferenceSource
	Points []orb.Point
}

// Empty reports whether the set has no facilities.
func (r ReferenceSet) Empty() bool { return len(r.Points) == 0 }

// SelectReferences picks the distance-reference facilities from a batch:
//   - TPS points when at least minPrimary of them exist
//   - otherwise Market points, as markets usually host informal waste points
//   - an empty set when neither exists, which yields the fallback distance
//
// A minPrimary <= 0 uses MinPrimaryReferences.
func SelectReferences(points []model.SpatialPoint, minPrimary int) ReferenceSet {
	if minPrimary <= 0 {
		minPrimary = MinPrimaryReferences
	}

	tps := pointsOfZone(points, model.ZoneTPS)
	if len(tps) >= minPrimary {
		return ReferenceSet{Source: ReferenceTPS, Points: tps}
	}

	markets := pointsOfZone(points, model.ZoneMarket)
	if len(markets) == 0 {
		return ReferenceSet{Source: ReferenceNone}
	}
	return ReferenceSet{Source: ReferenceMarket, Points: markets}
}

func pointsOfZone(points []model.SpatialPoint, zone model.ZoneType) []orb.Point {
	var out []orb.Point
	for _, p := range points {
		if p.Zone == zone {
			out = append(out, p.Point())
		}
	}
	return out
}
