// Package pipeline runs the batch scoring path: reference facilities and
// distances, attribute estimation, composite scoring and risk levels.
package pipeline

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/estimate"
	"github.com/sells-group/waste-risk/internal/geo"
	"github.com/sells-group/waste-risk/internal/level"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/scorer"
)

// Record is one batch input. Nil attribute pointers are estimated; a NaN
// value is treated as absent.
type Record struct {
	Point       model.SpatialPoint
	PopDensity  *float64
	WasteVolume *float64
	DistTPS     *float64
	RoadAccess  *model.RoadAccess
}

// Options controls a batch run.
type Options struct {
	Preset  scorer.Preset
	Binning level.Binning
	Seed    uint64
	// MinPrimaryReferences is the TPS count needed before markets stop
	// being used as references. 0 uses geo.MinPrimaryReferences.
	MinPrimaryReferences int
	// Workers bounds distance computation parallelism. 0 is unbounded.
	Workers int
	// Roads assigns missing road access. Nil draws uniformly.
	Roads estimate.RoadSampler
}

// Batch is the scored output of a run.
type Batch struct {
	Points     []model.ScoredPoint
	References geo.ReferenceSource
	Degenerate []string
	Preset     string
	Binning    level.Binning
	Seed       uint64
}

// Run scores records. Distances are computed in parallel and joined before
// normalisation; estimation runs sequentially in input order so the same seed
// and input reproduce the same batch.
func Run(ctx context.Context, records []Record, opts Options) (*Batch, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("preset", opts.Preset.Name))

	sc, err := scorer.New(opts.Preset)
	if err != nil {
		return nil, err
	}
	if _, err := level.ParseBinning(string(opts.Binning)); err != nil {
		return nil, err
	}

	points := make([]model.SpatialPoint, len(records))
	for i, r := range records {
		if _, err := model.ParseZoneType(string(r.Point.Zone)); err != nil {
			return nil, eris.Wrapf(err, "pipeline: record %d", i)
		}
		points[i] = r.Point
	}

	// References are only selected when some record needs a derived distance.
	var (
		refs  geo.ReferenceSet
		dists []geo.Distance
	)
	if needsDistance(records) {
		refs = geo.SelectReferences(points, opts.MinPrimaryReferences)
		dists, err = geo.Distances(ctx, points, refs, opts.Workers)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: compute distances")
		}
	}

	est := estimate.NewSeeded(opts.Seed, opts.Roads)
	out := make([]model.ScoredPoint, len(records))
	features := make([]model.FeatureVector, len(records))
	estimated := 0
	for i, r := range records {
		sp := model.ScoredPoint{Point: r.Point, DistMeasured: true}
		fv := model.FeatureVector{ZoneType: r.Point.Zone}
		drawn := false

		if v, ok := provided(r.WasteVolume); ok {
			fv.WasteVolume = v
		} else {
			fv.WasteVolume, drawn = est.Waste(r.Point.Zone), true
		}
		if v, ok := provided(r.PopDensity); ok {
			fv.PopDensity = v
		} else {
			fv.PopDensity, drawn = est.PopDensity(r.Point.Zone), true
		}
		if r.RoadAccess != nil {
			fv.RoadAccess = *r.RoadAccess
		} else {
			fv.RoadAccess, drawn = est.Road(), true
		}
		if v, ok := provided(r.DistTPS); ok {
			fv.DistTPS = v
		} else {
			fv.DistTPS = dists[i].Meters
			sp.DistMeasured = dists[i].Measured
		}
		if drawn {
			estimated++
		}

		sp.Features = fv
		features[i] = fv
		out[i] = sp
	}

	res, err := sc.Score(features)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: score batch")
	}
	levels, err := level.Apply(opts.Binning, res.Scores)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Risk = model.RiskScore{Score: res.Scores[i], Level: levels[i]}
	}
	Sanitize(out)

	log.Info("batch scored",
		zap.Int("points", len(out)),
		zap.Int("estimated", estimated),
		zap.String("references", string(refs.Source)),
		zap.Int("reference_count", len(refs.Points)),
		zap.Strings("degenerate", res.Degenerate),
		zap.String("binning", string(opts.Binning)),
	)

	return &Batch{
		Points:     out,
		References: refs.Source,
		Degenerate: res.Degenerate,
		Preset:     opts.Preset.Name,
		Binning:    opts.Binning,
		Seed:       opts.Seed,
	}, nil
}

func needsDistance(records []Record) bool {
	for _, r := range records {
		if _, ok := provided(r.DistTPS); !ok {
			return true
		}
	}
	return false
}

func provided(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) {
		return 0, false
	}
	return *v, true
}

// Sanitize replaces NaN and infinite numeric values with 0 in place. GeoJSON
// and the export formats cannot carry them.
func Sanitize(points []model.ScoredPoint) {
	clean := func(v *float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	for i := range points {
		p := &points[i]
		clean(&p.Features.PopDensity)
		clean(&p.Features.WasteVolume)
		clean(&p.Features.DistTPS)
		clean(&p.Risk.Score)
	}
}

// Counts tallies points per risk level.
func Counts(points []model.ScoredPoint) map[model.RiskLevel]int {
	out := make(map[model.RiskLevel]int, 3)
	for _, p := range points {
		out[p.Risk.Level]++
	}
	return out
}
