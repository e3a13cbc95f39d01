// Package inference turns a trained classifier's output for a single feature
// vector into the user-facing risk level and score.
//
// The live risk_score is the classifier's confidence in its own label. It is
// not the batch composite score: a single request has no batch to normalise
// against, so the composite scorer is never consulted here.
package inference

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// probTolerance is the allowed deviation of a distribution's sum from 1.
const probTolerance = 1e-6

// Prediction is the live prediction response.
type Prediction struct {
	RiskLevel model.RiskLevel             `json:"risk_level"`
	RiskScore float64                     `json:"risk_score"`
	Details   map[model.RiskLevel]float64 `json:"details"`
}

// Reconcile derives the prediction from a label and class distribution:
// the level is the label, the score is the label's probability and details
// carry every known label (0 where the classifier gave none).
func Reconcile(label model.RiskLevel, probs map[model.RiskLevel]float64) (Prediction, error) {
	if label.Rank() < 0 {
		return Prediction{}, eris.Errorf("inference: classifier returned unknown label %q", label)
	}

	details := make(map[model.RiskLevel]float64, 3)
	for _, l := range model.RiskLevels() {
		details[l] = 0
	}

	var sum float64
	for l, p := range probs {
		if l.Rank() < 0 {
			return Prediction{}, eris.Errorf("inference: probability for unknown label %q", l)
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Prediction{}, eris.Errorf("inference: probability for %s out of range: %g", l, p)
		}
		details[l] = p
		sum += p
	}
	if math.Abs(sum-1) > probTolerance {
		return Prediction{}, eris.Errorf("inference: probabilities sum to %g", sum)
	}

	score, ok := probs[label]
	if !ok {
		return Prediction{}, eris.Errorf("inference: no probability for predicted label %s", label)
	}

	return Prediction{RiskLevel: label, RiskScore: score, Details: details}, nil
}
