package geoscraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/model"
)

// Source fetches map elements for an area.
type Source interface {
	Fetch(ctx context.Context, area Area) ([]Element, error)
}

// Collect fetches elements, categorises them and keeps those whose zone is in
// zones. An empty zones list keeps DefaultZones.
func Collect(ctx context.Context, src Source, area Area, zones []model.ZoneType) ([]model.SpatialPoint, error) {
	if len(zones) == 0 {
		zones = DefaultZones
	}
	keep := make(map[model.ZoneType]bool, len(zones))
	for _, z := range zones {
		keep[z] = true
	}

	elems, err := src.Fetch(ctx, area)
	if err != nil {
		return nil, err
	}

	counts := map[model.ZoneType]int{}
	var out []model.SpatialPoint
	for _, e := range elems {
		z := Categorize(e.Tags)
		if !keep[z] {
			continue
		}
		counts[z]++
		out = append(out, model.SpatialPoint{
			ID:   fmt.Sprintf("%s/%d", e.Type, e.ID),
			Lon:  e.Lon,
			Lat:  e.Lat,
			Zone: z,
		})
	}

	fields := []zap.Field{zap.Int("fetched", len(elems)), zap.Int("kept", len(out))}
	for _, z := range zones {
		fields = append(fields, zap.Int(string(z), counts[z]))
	}
	zap.L().Info("geoscraper: categorised elements", fields...)
	return out, nil
}
