// Package classifier provides the trained risk classifier capability used by
// the prediction service: an in-process nearest-centroid model persisted as
// JSON, and an adapter for an external model server.
package classifier

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// ErrNotTrained is returned when no trained model is available yet.
var ErrNotTrained = eris.New("classifier: model not trained")

// Classifier maps a feature vector to a risk level and a probability
// distribution over the label set. Implementations must be safe for
// concurrent read-only use.
type Classifier interface {
	Predict(ctx context.Context, fv model.FeatureVector) (model.RiskLevel, error)
	PredictProba(ctx context.Context, fv model.FeatureVector) (map[model.RiskLevel]float64, error)
	Classes() []model.RiskLevel
}

// JointClassifier produces the label and its distribution from a single
// evaluation, so both describe the same model state.
type JointClassifier interface {
	Classifier
	PredictWithProba(ctx context.Context, fv model.FeatureVector) (model.RiskLevel, map[model.RiskLevel]float64, error)
}

// HealthChecker is implemented by classifiers backed by another service.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Provider hands out the classifier currently in effect.
type Provider interface {
	Classifier(ctx context.Context) (Classifier, error)
}

// Static is a Provider holding an already loaded classifier.
type Static struct {
	C Classifier
}

// Classifier implements Provider.
func (s Static) Classifier(context.Context) (Classifier, error) {
	if s.C == nil {
		return nil, ErrNotTrained
	}
	return s.C, nil
}
