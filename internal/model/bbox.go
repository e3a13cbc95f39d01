package model

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// BBox is a lon/lat bounding box.
type BBox struct {
	MinLon float64 `json:"min_lon" mapstructure:"min_lon" yaml:"min_lon"`
	MinLat float64 `json:"min_lat" mapstructure:"min_lat" yaml:"min_lat"`
	MaxLon float64 `json:"max_lon" mapstructure:"max_lon" yaml:"max_lon"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat" yaml:"max_lat"`
}

// Validate checks the box is well formed.
func (b BBox) Validate() error {
	if b.MinLon < -180 || b.MaxLon > 180 || b.MinLat < -90 || b.MaxLat > 90 {
		return eris.Errorf("model: bbox %s outside WGS84 range", b)
	}
	if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
		return eris.Errorf("model: bbox %s has min >= max", b)
	}
	return nil
}

// IsZero reports whether the box is unset.
func (b BBox) IsZero() bool { return b == BBox{} }

// Bound converts the box to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// String formats the box as "min_lon,min_lat,max_lon,max_lat".
func (b BBox) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(b.MinLon, 'f', -1, 64),
		strconv.FormatFloat(b.MinLat, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64),
	}, ",")
}

// ParseBBox parses "min_lon,min_lat,max_lon,max_lat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, eris.Errorf("model: bbox %q must have 4 comma-separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "model: bbox %q value %d", s, i)
		}
		v[i] = f
	}
	b := BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	return b, b.Validate()
}
