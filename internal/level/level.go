// Package level discretises continuous risk scores into Low, Medium and High.
package level

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// Fixed thresholds; both bounds are inclusive on the lower bin.
const (
	LowMax    = 0.4
	MediumMax = 0.7
)

// Binning names a discretisation strategy.
type Binning string

const (
	// BinningFixed applies absolute domain thresholds to each score.
	BinningFixed Binning = "fixed"
	// BinningEqualWidth splits the batch's score range into three equal bins.
	BinningEqualWidth Binning = "equal_width"
)

// ParseBinning validates a binning name.
func ParseBinning(s string) (Binning, error) {
	switch b := Binning(s); b {
	case BinningFixed, BinningEqualWidth:
		return b, nil
	}
	return "", eris.Errorf("level: unknown binning %q (valid: %s, %s)", s, BinningFixed, BinningEqualWidth)
}

// Fixed classifies a single score: <= 0.4 Low, <= 0.7 Medium, otherwise High.
func Fixed(score float64) model.RiskLevel {
	switch {
	case score <= LowMax:
		return model.RiskLow
	case score <= MediumMax:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// Edges are the upper bounds of the Low and Medium bins.
type Edges struct {
	LowMax    float64
	MediumMax float64
}

// Level classifies score against the edges.
func (e Edges) Level(score float64) model.RiskLevel {
	switch {
	case score <= e.LowMax:
		return model.RiskLow
	case score <= e.MediumMax:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// EqualWidthEdges derives three equal-width bins spanning [min, max] of the
// batch. The second result is false when the batch is constant, in which case
// every score lands in the middle bin.
func EqualWidthEdges(scores []float64) (Edges, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if len(scores) == 0 || hi == lo {
		// Bins collapse to a point; place it strictly inside Medium.
		return Edges{LowMax: math.Nextafter(lo, math.Inf(-1)), MediumMax: lo}, false
	}
	w := (hi - lo) / 3
	return Edges{LowMax: lo + w, MediumMax: lo + 2*w}, true
}

// EqualWidth classifies every score of a batch using bins derived from the
// batch itself.
func EqualWidth(scores []float64) []model.RiskLevel {
	edges, _ := EqualWidthEdges(scores)
	out := make([]model.RiskLevel, len(scores))
	for i, s := range scores {
		out[i] = edges.Level(s)
	}
	return out
}

// Apply classifies a batch with the chosen strategy.
func Apply(b Binning, scores []float64) ([]model.RiskLevel, error) {
	switch b {
	case BinningFixed:
		out := make([]model.RiskLevel, len(scores))
		for i, s := range scores {
			out[i] = Fixed(s)
		}
		return out, nil
	case BinningEqualWidth:
		return EqualWidth(scores), nil
	}
	return nil, eris.Errorf("level: unknown binning %q", b)
}
