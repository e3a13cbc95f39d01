package classifier

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// ClassReport holds per-class metrics.
type ClassReport struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

// Report summarises a classifier against held-out labels.
type Report struct {
	Accuracy float64                         `json:"accuracy"`
	Samples  int                             `json:"samples"`
	Classes  map[model.RiskLevel]ClassReport `json:"classes"`
}

// Evaluate predicts every sample and compares against labels.
func Evaluate(ctx context.Context, c Classifier, samples []model.FeatureVector, labels []model.RiskLevel) (Report, error) {
	if len(samples) != len(labels) {
		return Report{}, eris.Errorf("classifier: %d samples but %d labels", len(samples), len(labels))
	}

	rep := Report{Samples: len(samples), Classes: map[model.RiskLevel]ClassReport{}}
	if len(samples) == 0 {
		return rep, nil
	}

	predicted := map[model.RiskLevel]int{}
	truePos := map[model.RiskLevel]int{}
	support := map[model.RiskLevel]int{}
	correct := 0
	for i, s := range samples {
		got, err := c.Predict(ctx, s)
		if err != nil {
			return Report{}, eris.Wrapf(err, "classifier: evaluate sample %d", i)
		}
		predicted[got]++
		support[labels[i]]++
		if got == labels[i] {
			truePos[got]++
			correct++
		}
	}

	rep.Accuracy = float64(correct) / float64(len(samples))
	for _, l := range model.RiskLevels() {
		if support[l] == 0 && predicted[l] == 0 {
			continue
		}
		cr := ClassReport{Support: support[l]}
		if predicted[l] > 0 {
			cr.Precision = float64(truePos[l]) / float64(predicted[l])
		}
		if support[l] > 0 {
			cr.Recall = float64(truePos[l]) / float64(support[l])
		}
		rep.Classes[l] = cr
	}
	return rep, nil
}
