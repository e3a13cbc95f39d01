// Package store persists batch runs and their scored points.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// Latest selects the most recent run in Resolve.
const Latest = "latest"

// Store defines the persistence interface for scored batches.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	// SaveRun inserts a run and its points in one transaction; on error
	// neither is stored.
	SaveRun(ctx context.Context, run model.Run, points []model.ScoredPoint) (*model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Points
	SavePoints(ctx context.Context, runID string, points []model.ScoredPoint) error
	ListPoints(ctx context.Context, runID string) ([]model.ScoredPoint, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SaveBatch records a run and its points atomically. ID and CreatedAt are
// assigned when empty; PointCount is taken from points.
func SaveBatch(ctx context.Context, s Store, run model.Run, points []model.ScoredPoint) (*model.Run, error) {
	run.PointCount = len(points)
	return s.SaveRun(ctx, prepareRun(run), points)
}

// Resolve returns the run named by ref, or the newest run when ref is
// "latest" or empty.
func Resolve(ctx context.Context, s Store, ref string) (*model.Run, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.EqualFold(ref, Latest) {
		return s.LatestRun(ctx)
	}
	return s.GetRun(ctx, ref)
}

func prepareRun(run model.Run) model.Run {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return run
}

const defaultListLimit = 100

type runRow struct {
	ID         string    `db:"id"`
	Source     string    `db:"source"`
	Preset     string    `db:"preset"`
	Binning    string    `db:"binning"`
	Seed       int64     `db:"seed"`
	PointCount int       `db:"point_count"`
	CreatedAt  time.Time `db:"created_at"`
}

func toRunRow(r model.Run) runRow {
	return runRow{
		ID:         r.ID,
		Source:     string(r.Source),
		Preset:     r.Preset,
		Binning:    r.Binning,
		Seed:       int64(r.Seed), //nolint:gosec // stored bit-for-bit
		PointCount: r.PointCount,
		CreatedAt:  r.CreatedAt,
	}
}

func (r runRow) model() model.Run {
	return model.Run{
		ID:         r.ID,
		Source:     model.RunSource(r.Source),
		Preset:     r.Preset,
		Binning:    r.Binning,
		Seed:       uint64(r.Seed), //nolint:gosec // stored bit-for-bit
		PointCount: r.PointCount,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// pointRow is the flat column form of a scored point.
type pointRow struct {
	RunID        string  `db:"run_id"`
	Seq          int     `db:"seq"`
	PointID      string  `db:"point_id"`
	Lon          float64 `db:"lon"`
	Lat          float64 `db:"lat"`
	ZoneType     string  `db:"zone_type"`
	PopDensity   float64 `db:"pop_density"`
	WasteVolume  float64 `db:"waste_volume"`
	DistTPS      float64 `db:"dist_tps"`
	DistMeasured bool    `db:"dist_measured"`
	RoadAccess   string  `db:"road_access"`
	RiskScore    float64 `db:"risk_score"`
	RiskLevel    string  `db:"risk_level"`
}

func toPointRow(runID string, seq int, p model.ScoredPoint) pointRow {
	return pointRow{
		RunID:        runID,
		Seq:          seq,
		PointID:      p.Point.ID,
		Lon:          p.Point.Lon,
		Lat:          p.Point.Lat,
		ZoneType:     string(p.Point.Zone),
		PopDensity:   p.Features.PopDensity,
		WasteVolume:  p.Features.WasteVolume,
		DistTPS:      p.Features.DistTPS,
		DistMeasured: p.DistMeasured,
		RoadAccess:   string(p.Features.RoadAccess),
		RiskScore:    p.Risk.Score,
		RiskLevel:    string(p.Risk.Level),
	}
}

func (r pointRow) model() model.ScoredPoint {
	zone := model.ZoneType(r.ZoneType)
	return model.ScoredPoint{
		Point: model.SpatialPoint{ID: r.PointID, Lon: r.Lon, Lat: r.Lat, Zone: zone},
		Features: model.FeatureVector{
			PopDensity:  r.PopDensity,
			DistTPS:     r.DistTPS,
			WasteVolume: r.WasteVolume,
			RoadAccess:  model.RoadAccess(r.RoadAccess),
			ZoneType:    zone,
		},
		Risk:         model.RiskScore{Score: r.RiskScore, Level: model.RiskLevel(r.RiskLevel)},
		DistMeasured: r.DistMeasured,
	}
}
