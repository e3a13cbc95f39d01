package geo

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/waste-risk/internal/model"
)

// chunkSize bounds the number of points handled by one worker task.
const chunkSize = 256

// Distance is a derived dist_tps value.
type Distance struct {
	Meters   float64
	Measured bool
}

// Distances computes the nearest-facility distance for every point in
// parallel. Results are index-aligned with points. workers <= 0 runs one
// task per chunk without an explicit limit.
func Distances(ctx context.Context, points []model.SpatialPoint, refs ReferenceSet, workers int) ([]Distance, error) {
	log := zap.L().With(zap.String("component", "geo.distances"))

	switch refs.Source {
	case ReferenceNone:
		log.Warn("no reference facilities found; using fallback distance",
			zap.Float64("fallback_meters", FallbackDistanceMeters),
			zap.Int("points", len(points)),
		)
	case ReferenceMarket:
		log.Warn("few TPS points found; using markets as reference facilities",
			zap.Int("references", len(refs.Points)),
		)
	}

	out := make([]Distance, len(points))
	if len(points) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for start := 0; start < len(points); start += chunkSize {
		end := min(start+chunkSize, len(points))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				m, ok := NearestDistance(points[i].Point(), refs.Points)
				out[i] = Distance{Meters: m, Measured: ok}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
