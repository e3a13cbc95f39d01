package classifier

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/pkg/modelserver"
)

// RemoteName identifies the remote backend in model-info responses.
const RemoteName = "RemoteModelServer"

// Remote adapts an external model server to the Classifier capability.
type Remote struct {
	client modelserver.Client
}

// NewRemote wraps client.
func NewRemote(client modelserver.Client) *Remote {
	return &Remote{client: client}
}

// Classifier implements Provider. Reachability is reported by Check.
func (r *Remote) Classifier(context.Context) (Classifier, error) {
	return r, nil
}

// Check implements HealthChecker against the server's health endpoint.
func (r *Remote) Check(ctx context.Context) error {
	if err := r.client.Health(ctx); err != nil {
		if errors.Is(err, modelserver.ErrUnavailable) {
			return eris.Wrap(ErrNotTrained, "classifier: remote model server has no model")
		}
		return eris.Wrap(err, "classifier: remote model server unreachable")
	}
	return nil
}

// Classes implements Classifier.
func (r *Remote) Classes() []model.RiskLevel {
	return model.RiskLevels()
}

// Predict implements Classifier.
func (r *Remote) Predict(ctx context.Context, fv model.FeatureVector) (model.RiskLevel, error) {
	label, _, err := r.PredictWithProba(ctx, fv)
	return label, err
}

// PredictProba implements Classifier.
func (r *Remote) PredictProba(ctx context.Context, fv model.FeatureVector) (map[model.RiskLevel]float64, error) {
	_, probs, err := r.PredictWithProba(ctx, fv)
	return probs, err
}

// PredictWithProba implements JointClassifier with one server request.
func (r *Remote) PredictWithProba(ctx context.Context, fv model.FeatureVector) (model.RiskLevel, map[model.RiskLevel]float64, error) {
	resp, err := r.call(ctx, fv)
	if err != nil {
		return "", nil, err
	}
	label, err := model.ParseRiskLevel(resp.Label)
	if err != nil {
		return "", nil, eris.Wrap(err, "classifier: remote label")
	}
	probs := make(map[model.RiskLevel]float64, len(resp.Probabilities))
	for k, p := range resp.Probabilities {
		l, err := model.ParseRiskLevel(k)
		if err != nil {
			return "", nil, eris.Wrap(err, "classifier: remote probabilities")
		}
		probs[l] = p
	}
	return label, probs, nil
}

func (r *Remote) call(ctx context.Context, fv model.FeatureVector) (*modelserver.PredictResponse, error) {
	resp, err := r.client.Predict(ctx, modelserver.PredictRequest{
		PopDensity:  fv.PopDensity,
		DistTPS:     fv.DistTPS,
		WasteVolume: fv.WasteVolume,
		RoadAccess:  string(fv.RoadAccess),
		ZoneType:    string(fv.ZoneType),
	})
	if err != nil {
		if errors.Is(err, modelserver.ErrUnavailable) {
			return nil, eris.Wrap(ErrNotTrained, "classifier: remote model server has no model")
		}
		return nil, eris.Wrap(err, "classifier: remote predict")
	}
	return resp, nil
}
