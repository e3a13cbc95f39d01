// Package model defines the domain types shared by the risk scoring pipeline
// and the prediction service.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// ZoneType is the land-use category of a spatial point.
type ZoneType string

const (
	ZoneMarket      ZoneType = "Market"
	ZoneTPS         ZoneType = "TPS" // waste-transfer point
	ZoneEducation   ZoneType = "Education"
	ZoneResidential ZoneType = "Residential"
	ZoneCampus      ZoneType = "Campus"
	ZoneOffice      ZoneType = "Office"
	ZoneIndustrial  ZoneType = "Industrial"
	ZoneOther       ZoneType = "Other"
)

var zoneTypes = []ZoneType{
	ZoneMarket, ZoneTPS, ZoneEducation, ZoneResidential,
	ZoneCampus, ZoneOffice, ZoneIndustrial, ZoneOther,
}

// ZoneTypes returns the fixed zone vocabulary in declaration order.
func ZoneTypes() []ZoneType {
	out := make([]ZoneType, len(zoneTypes))
	copy(out, zoneTypes)
	return out
}

// ParseZoneType resolves a zone label case-insensitively.
func ParseZoneType(s string) (ZoneType, error) {
	if z, ok := lookup(zoneIndex, s); ok {
		return z, nil
	}
	return "", eris.Errorf("model: unknown zone_type %q (valid: %s)", s, joinLabels(zoneTypes))
}

// RoadAccess is the road-access quality of a spatial point.
type RoadAccess string

const (
	RoadGood     RoadAccess = "Good"
	RoadModerate RoadAccess = "Moderate"
	RoadPoor     RoadAccess = "Poor"
)

var roadAccesses = []RoadAccess{RoadGood, RoadModerate, RoadPoor}

// roadPenalty maps road access to its numeric risk penalty. Poor access
// makes collection harder, so it carries the full penalty.
var roadPenalty = map[RoadAccess]float64{
	RoadPoor:     1.0,
	RoadModerate: 0.5,
	RoadGood:     0.0,
}

// RoadAccesses returns the road-access categories.
func RoadAccesses() []RoadAccess {
	out := make([]RoadAccess, len(roadAccesses))
	copy(out, roadAccesses)
	return out
}

// ParseRoadAccess resolves a road-access label case-insensitively.
func ParseRoadAccess(s string) (RoadAccess, error) {
	if r, ok := lookup(roadIndex, s); ok {
		return r, nil
	}
	return "", eris.Errorf("model: unknown road_access %q (valid: %s)", s, joinLabels(roadAccesses))
}

// Penalty returns the numeric penalty for r. The second result is false for
// values outside the vocabulary.
func (r RoadAccess) Penalty() (float64, bool) {
	p, ok := roadPenalty[r]
	return p, ok
}

// RiskLevel is the ordinal discretisation of a risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

var riskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// RiskLevels returns the label set in ascending order.
func RiskLevels() []RiskLevel {
	out := make([]RiskLevel, len(riskLevels))
	copy(out, riskLevels)
	return out
}

// ParseRiskLevel resolves a risk label case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	if l, ok := lookup(levelIndex, s); ok {
		return l, nil
	}
	return "", eris.Errorf("model: unknown risk_level %q (valid: %s)", s, joinLabels(riskLevels))
}

// Rank returns the ordinal position of l (Low=0), or -1 when unknown.
func (l RiskLevel) Rank() int {
	for i, v := range riskLevels {
		if v == l {
			return i
		}
	}
	return -1
}

var (
	zoneIndex  = index(zoneTypes)
	roadIndex  = index(roadAccesses)
	levelIndex = index(riskLevels)
)

func index[T ~string](values []T) map[string]T {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[fold(string(v))] = v
	}
	return m
}

func lookup[T ~string](m map[string]T, s string) (T, bool) {
	v, ok := m[fold(strings.TrimSpace(s))]
	return v, ok
}

// fold builds a fresh Caser per call; casers carry state and are not safe to share.
func fold(s string) string {
	return cases.Fold().String(s)
}

func joinLabels[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
