// Package geospatial reads and writes scored point collections as GeoJSON.
package geospatial

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/pipeline"
)

// ErrNotFound is returned when a dataset file does not exist.
var ErrNotFound = eris.New("geospatial: dataset not found")

// Property names of a scored feature.
const (
	PropID           = "id"
	PropZoneType     = "zone_type"
	PropPopDensity   = "pop_density"
	PropWasteVolume  = "waste_volume"
	PropDistTPS      = "dist_tps"
	PropRoadAccess   = "road_access"
	PropRiskScore    = "risk_score"
	PropRiskLevel    = "risk_level"
	PropDistMeasured = "dist_measured"
)

// FeatureCollection builds a collection from scored points. NaN and infinite
// numbers are written as 0.
func FeatureCollection(points []model.ScoredPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(p.Point.Point())
		if p.Point.ID != "" {
			f.ID = p.Point.ID
			f.Properties[PropID] = p.Point.ID
		}
		f.Properties[PropZoneType] = string(p.Point.Zone)
		f.Properties[PropPopDensity] = finite(p.Features.PopDensity)
		f.Properties[PropWasteVolume] = finite(p.Features.WasteVolume)
		f.Properties[PropDistTPS] = finite(p.Features.DistTPS)
		f.Properties[PropRoadAccess] = string(p.Features.RoadAccess)
		f.Properties[PropRiskScore] = finite(p.Risk.Score)
		f.Properties[PropRiskLevel] = string(p.Risk.Level)
		f.Properties[PropDistMeasured] = p.DistMeasured
		fc.Append(f)
	}
	return fc
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Marshal encodes scored points as a GeoJSON FeatureCollection.
func Marshal(points []model.ScoredPoint) ([]byte, error) {
	data, err := FeatureCollection(points).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geospatial: marshal feature collection")
	}
	return data, nil
}

// WriteFile writes scored points to path, creating parent directories. The
// file is replaced atomically.
func WriteFile(path string, points []model.ScoredPoint) error {
	data, err := Marshal(points)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "geospatial: create dir for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // served publicly
		return eris.Wrapf(err, "geospatial: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "geospatial: rename %s", tmp)
	}
	return nil
}

// ReadFile returns the raw bytes of a dataset, or ErrNotFound.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(ErrNotFound, "geospatial: %s", path)
		}
		return nil, eris.Wrapf(err, "geospatial: read %s", path)
	}
	return data, nil
}

func readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geospatial: parse %s", path)
	}
	return fc, nil
}

// ReadScored reads a scored collection written by WriteFile.
func ReadScored(path string) ([]model.ScoredPoint, error) {
	fc, err := readCollection(path)
	if err != nil {
		return nil, err
	}

	out := make([]model.ScoredPoint, 0, len(fc.Features))
	for i, f := range fc.Features {
		sp, err := scoredFromFeature(f)
		if err != nil {
			return nil, eris.Wrapf(err, "geospatial: %s feature %d", path, i)
		}
		out = append(out, sp)
	}
	return out, nil
}

func scoredFromFeature(f *geojson.Feature) (model.ScoredPoint, error) {
	pt, err := spatialPoint(f)
	if err != nil {
		return model.ScoredPoint{}, err
	}
	props := properties(f.Properties)

	var sp model.ScoredPoint
	sp.Point = pt
	sp.Features.ZoneType = pt.Zone
	if sp.Features.PopDensity, err = props.number(PropPopDensity); err != nil {
		return sp, err
	}
	if sp.Features.WasteVolume, err = props.number(PropWasteVolume); err != nil {
		return sp, err
	}
	if sp.Features.DistTPS, err = props.number(PropDistTPS); err != nil {
		return sp, err
	}
	if sp.Risk.Score, err = props.number(PropRiskScore); err != nil {
		return sp, err
	}

	road, err := props.text(PropRoadAccess)
	if err != nil {
		return sp, err
	}
	if sp.Features.RoadAccess, err = model.ParseRoadAccess(road); err != nil {
		return sp, err
	}
	lvl, err := props.text(PropRiskLevel)
	if err != nil {
		return sp, err
	}
	if sp.Risk.Level, err = model.ParseRiskLevel(lvl); err != nil {
		return sp, err
	}

	sp.DistMeasured = true
	if v, ok := f.Properties[PropDistMeasured].(bool); ok {
		sp.DistMeasured = v
	}
	return sp, nil
}

// ReadRecords reads batch input: point or polygon features with a zone_type
// property and optional pop_density, waste_volume, dist_tps and road_access
// values. Polygons are reduced to their centroid.
func ReadRecords(path string) ([]pipeline.Record, error) {
	fc, err := readCollection(path)
	if err != nil {
		return nil, err
	}

	out := make([]pipeline.Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		r, err := recordFromFeature(f)
		if err != nil {
			return nil, eris.Wrapf(err, "geospatial: %s feature %d", path, i)
		}
		out = append(out, r)
	}
	return out, nil
}

func recordFromFeature(f *geojson.Feature) (pipeline.Record, error) {
	pt, err := spatialPoint(f)
	if err != nil {
		return pipeline.Record{}, err
	}
	props := properties(f.Properties)
	r := pipeline.Record{Point: pt}

	for name, dst := range map[string]**float64{
		PropPopDensity:  &r.PopDensity,
		PropWasteVolume: &r.WasteVolume,
		PropDistTPS:     &r.DistTPS,
	} {
		v, ok, err := props.optionalNumber(name)
		if err != nil {
			return r, err
		}
		if ok {
			*dst = &v
		}
	}

	if s, ok := f.Properties[PropRoadAccess].(string); ok && s != "" {
		road, err := model.ParseRoadAccess(s)
		if err != nil {
			return r, err
		}
		r.RoadAccess = &road
	}
	return r, nil
}

func spatialPoint(f *geojson.Feature) (model.SpatialPoint, error) {
	var p orb.Point
	switch g := f.Geometry.(type) {
	case orb.Point:
		p = g
	case orb.Polygon, orb.MultiPolygon:
		p, _ = planar.CentroidArea(g)
	case nil:
		return model.SpatialPoint{}, eris.New("missing geometry")
	default:
		return model.SpatialPoint{}, eris.Errorf("unsupported geometry %s", g.GeoJSONType())
	}

	zs, err := properties(f.Properties).text(PropZoneType)
	if err != nil {
		return model.SpatialPoint{}, err
	}
	zone, err := model.ParseZoneType(zs)
	if err != nil {
		return model.SpatialPoint{}, err
	}

	id, _ := f.Properties[PropID].(string)
	if id == "" {
		if s, ok := f.ID.(string); ok {
			id = s
		}
	}
	return model.SpatialPoint{ID: id, Lon: p.X(), Lat: p.Y(), Zone: zone}, nil
}

type properties geojson.Properties

func (p properties) number(name string) (float64, error) {
	v, ok, err := p.optionalNumber(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, eris.Errorf("missing property %s", name)
	}
	return v, nil
}

// optionalNumber treats null as absent.
func (p properties) optionalNumber(name string) (float64, bool, error) {
	raw, ok := p[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, eris.Wrapf(err, "property %s", name)
		}
		return f, true, nil
	}
	return 0, false, eris.Errorf("property %s must be a number, got %T", name, raw)
}

func (p properties) text(name string) (string, error) {
	raw, ok := p[name]
	if !ok || raw == nil {
		return "", eris.Errorf("missing property %s", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", eris.Errorf("property %s must be a string, got %T", name, raw)
	}
	return s, nil
}
