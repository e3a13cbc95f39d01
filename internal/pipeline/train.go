package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/classifier"
	"github.com/sells-group/waste-risk/internal/estimate"
	"github.com/sells-group/waste-risk/internal/model"
)

// DefaultTestFraction is the share of a dataset held out for evaluation.
const DefaultTestFraction = 0.2

// Split shuffles points with seed and returns (train, test). The test set
// holds round(len*testFrac) points; both sets are non-empty when len >= 2.
func Split(points []model.ScoredPoint, testFrac float64, seed uint64) (train, test []model.ScoredPoint, err error) {
	if testFrac <= 0 || testFrac >= 1 {
		return nil, nil, eris.Errorf("pipeline: test fraction must be in (0,1), got %g", testFrac)
	}
	if len(points) < 2 {
		return nil, nil, eris.Errorf("pipeline: need at least 2 points to split, got %d", len(points))
	}

	shuffled := make([]model.ScoredPoint, len(points))
	copy(shuffled, points)
	rng := estimate.NewRand(seed)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nTest := int(float64(len(points))*testFrac + 0.5)
	nTest = min(max(nTest, 1), len(points)-1)
	return shuffled[nTest:], shuffled[:nTest], nil
}

// TrainResult is the outcome of Train.
type TrainResult struct {
	Model     *classifier.Centroid
	Report    classifier.Report
	TrainSize int
	TestSize  int
}

// Train splits labelled points, fits a centroid classifier on the training
// share and evaluates it on the held-out share.
func Train(ctx context.Context, points []model.ScoredPoint, testFrac float64, seed uint64) (*TrainResult, error) {
	trainSet, testSet, err := Split(points, testFrac, seed)
	if err != nil {
		return nil, err
	}

	xs, ys := unzip(trainSet)
	m, err := classifier.Fit(xs, ys)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fit classifier")
	}

	tx, ty := unzip(testSet)
	rep, err := classifier.Evaluate(ctx, m, tx, ty)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: evaluate classifier")
	}

	zap.L().Info("classifier trained",
		zap.Int("train", len(trainSet)),
		zap.Int("test", len(testSet)),
		zap.Float64("accuracy", rep.Accuracy),
	)
	return &TrainResult{Model: m, Report: rep, TrainSize: len(trainSet), TestSize: len(testSet)}, nil
}

func unzip(points []model.ScoredPoint) ([]model.FeatureVector, []model.RiskLevel) {
	xs := make([]model.FeatureVector, len(points))
	ys := make([]model.RiskLevel, len(points))
	for i, p := range points {
		xs[i] = p.Features
		ys[i] = p.Risk.Level
	}
	return xs, ys
}
