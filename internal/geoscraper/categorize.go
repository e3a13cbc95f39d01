package geoscraper

import (
	"strings"

	"github.com/sells-group/waste-risk/internal/model"
)

// tagRule maps one tag value to a zone. Rules are checked in order, so amenity
// wins over building when an element carries both.
type tagRule struct {
	Key   string
	Value string
	Zone  model.ZoneType
}

var tagRules = []tagRule{
	{"amenity", "marketplace", model.ZoneMarket},
	{"amenity", "waste_disposal", model.ZoneTPS},
	{"amenity", "waste_transfer_station", model.ZoneTPS},
	{"amenity", "school", model.ZoneEducation},
	{"amenity", "university", model.ZoneEducation},
	{"building", "residential", model.ZoneResidential},
	{"building", "apartments", model.ZoneResidential},
	{"building", "house", model.ZoneResidential},
}

// queryFilters are the tag values requested from Overpass. Hospitals and
// parks are fetched for context and categorised as Other.
var queryFilters = map[string][]string{
	"amenity":  {"marketplace", "waste_disposal", "waste_transfer_station", "school", "university", "hospital"},
	"building": {"residential", "apartments", "house"},
	"leisure":  {"park"},
}

// DefaultZones are the categories kept for scoring.
var DefaultZones = []model.ZoneType{model.ZoneMarket, model.ZoneTPS, model.ZoneEducation, model.ZoneResidential}

// Categorize returns the zone for an element's tags.
func Categorize(tags map[string]string) model.ZoneType {
	for _, r := range tagRules {
		if strings.EqualFold(strings.TrimSpace(tags[r.Key]), r.Value) {
			return r.Zone
		}
	}
	return model.ZoneOther
}
