package inference

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/classifier"
	"github.com/sells-group/waste-risk/internal/model"
)

// Service answers live single-point predictions.
type Service struct {
	provider classifier.Provider
}

// NewService returns a service resolving its classifier through p.
func NewService(p classifier.Provider) *Service {
	return &Service{provider: p}
}

// Predict validates fv, obtains the classifier and reconciles its output.
// Classifiers implementing JointClassifier are evaluated once.
// Failures are never retried.
func (s *Service) Predict(ctx context.Context, fv model.FeatureVector) (Prediction, error) {
	if err := fv.Validate(); err != nil {
		return Prediction{}, invalid(err)
	}

	c, err := s.provider.Classifier(ctx)
	if err != nil {
		return Prediction{}, unavailable(err)
	}

	var (
		label model.RiskLevel
		probs map[model.RiskLevel]float64
	)
	if jc, ok := c.(classifier.JointClassifier); ok {
		if label, probs, err = jc.PredictWithProba(ctx, fv); err != nil {
			return Prediction{}, s.classifierErr("predict", err)
		}
	} else {
		if label, err = c.Predict(ctx, fv); err != nil {
			return Prediction{}, s.classifierErr("predict", err)
		}
		if probs, err = c.PredictProba(ctx, fv); err != nil {
			return Prediction{}, s.classifierErr("predict_proba", err)
		}
	}

	p, err := Reconcile(label, probs)
	if err != nil {
		return Prediction{}, s.classifierErr("reconcile", err)
	}
	return p, nil
}

// Ready reports whether a classifier can be obtained and, for remote
// backends, whether it answers health checks.
func (s *Service) Ready(ctx context.Context) error {
	c, err := s.provider.Classifier(ctx)
	if err != nil {
		return unavailable(err)
	}
	if hc, ok := c.(classifier.HealthChecker); ok {
		if err := hc.Check(ctx); err != nil {
			return unavailable(err)
		}
	}
	return nil
}

func (s *Service) classifierErr(stage string, err error) error {
	if errors.Is(err, classifier.ErrNotTrained) {
		return unavailable(err)
	}
	zap.L().Error("inference: classifier failed", zap.String("stage", stage), zap.Error(err))
	return failed(eris.Wrapf(err, "inference: %s", stage))
}
