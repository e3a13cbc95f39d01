package inference

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// Request is the raw live prediction payload. Pointer fields distinguish an
// absent value from zero.
type Request struct {
	PopDensity  *float64 `json:"pop_density"`
	DistTPS     *float64 `json:"dist_tps"`
	WasteVolume *float64 `json:"waste_volume"`
	RoadAccess  *string  `json:"road_access"`
	ZoneType    *string  `json:"zone_type"`
}

// FeatureVector validates the request and returns its canonical feature
// vector. Category labels are matched case-insensitively.
func (r Request) FeatureVector() (model.FeatureVector, error) {
	var missing []string
	if r.PopDensity == nil {
		missing = append(missing, "pop_density")
	}
	if r.DistTPS == nil {
		missing = append(missing, "dist_tps")
	}
	if r.WasteVolume == nil {
		missing = append(missing, "waste_volume")
	}
	if r.RoadAccess == nil {
		missing = append(missing, "road_access")
	}
	if r.ZoneType == nil {
		missing = append(missing, "zone_type")
	}
	if len(missing) > 0 {
		return model.FeatureVector{}, invalid(eris.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	road, err := model.ParseRoadAccess(*r.RoadAccess)
	if err != nil {
		return model.FeatureVector{}, invalid(err)
	}
	zone, err := model.ParseZoneType(*r.ZoneType)
	if err != nil {
		return model.FeatureVector{}, invalid(err)
	}

	fv := model.FeatureVector{
		PopDensity:  *r.PopDensity,
		DistTPS:     *r.DistTPS,
		WasteVolume: *r.WasteVolume,
		RoadAccess:  road,
		ZoneType:    zone,
	}
	if err := fv.Validate(); err != nil {
		return model.FeatureVector{}, invalid(err)
	}
	return fv, nil
}

// Info is the static model capability descriptor.
type Info struct {
	Model    string            `json:"model"`
	Features []string          `json:"features"`
	Classes  []model.RiskLevel `json:"classes"`
}

// Features is the fixed input feature list in request order.
var Features = []string{"pop_density", "dist_tps", "waste_volume", "road_access", "zone_type"}

// ModelInfo returns the descriptor for the named backend.
func ModelInfo(name string) Info {
	f := make([]string, len(Features))
	copy(f, Features)
	return Info{Model: name, Features: f, Classes: model.RiskLevels()}
}
