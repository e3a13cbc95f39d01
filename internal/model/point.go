package model

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// SpatialPoint is a geo-referenced point with its zone category. Geometry is
// fixed at ingestion.
type SpatialPoint struct {
	ID   string   `json:"id,omitempty"`
	Lon  float64  `json:"lon"`
	Lat  float64  `json:"lat"`
	Zone ZoneType `json:"zone_type"`
}

// Point returns the coordinate as an orb point (x=lon, y=lat).
func (p SpatialPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FeatureVector holds the scoring attributes of a single point.
type FeatureVector struct {
	PopDensity  float64    `json:"pop_density"`
	DistTPS     float64    `json:"dist_tps"`
	WasteVolume float64    `json:"waste_volume"`
	RoadAccess  RoadAccess `json:"road_access"`
	ZoneType    ZoneType   `json:"zone_type"`
}

// Validate checks that every field is present and within its domain.
func (f FeatureVector) Validate() error {
	numeric := []struct {
		name string
		v    float64
	}{
		{"pop_density", f.PopDensity},
		{"dist_tps", f.DistTPS},
		{"waste_volume", f.WasteVolume},
	}
	for _, n := range numeric {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) {
			return eris.Errorf("model: %s must be a finite number", n.name)
		}
		if n.v < 0 {
			return eris.Errorf("model: %s must be >= 0, got %g", n.name, n.v)
		}
	}
	if _, ok := f.RoadAccess.Penalty(); !ok {
		return eris.Errorf("model: unknown road_access %q (valid: %s)", f.RoadAccess, joinLabels(roadAccesses))
	}
	if z, err := ParseZoneType(string(f.ZoneType)); err != nil || z != f.ZoneType {
		return eris.Errorf("model: unknown zone_type %q (valid: %s)", f.ZoneType, joinLabels(zoneTypes))
	}
	return nil
}

// RiskScore is an immutable scoring outcome. For batch output Score is the
// composite rule-based score; for live predictions it is classifier confidence.
type RiskScore struct {
	Score float64   `json:"risk_score"`
	Level RiskLevel `json:"risk_level"`
}

// ScoredPoint is one record of a scored batch.
type ScoredPoint struct {
	Point    SpatialPoint  `json:"point"`
	Features FeatureVector `json:"features"`
	Risk     RiskScore     `json:"risk"`
	// DistMeasured is false when DistTPS holds the no-reference sentinel.
	DistMeasured bool `json:"dist_measured"`
}

// RunSource identifies how a batch was produced.
type RunSource string

const (
	RunSourceOSM       RunSource = "osm"
	RunSourceSynthetic RunSource = "synthetic"
	RunSourceFile      RunSource = "file"
)

// Run describes a persisted batch.
type Run struct {
	ID         string    `json:"id"`
	Source     RunSource `json:"source"`
	Preset     string    `json:"preset"`
	Binning    string    `json:"binning"`
	Seed       uint64    `json:"seed"`
	PointCount int       `json:"point_count"`
	CreatedAt  time.Time `json:"created_at"`
}
