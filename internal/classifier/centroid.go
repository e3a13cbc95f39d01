package classifier

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/waste-risk/internal/model"
)

// CentroidName identifies the nearest-centroid model in model-info responses.
const CentroidName = "NearestCentroid"

const centroidVersion = 1

// Centroid is a nearest-centroid classifier over standardised numeric
// features and one-hot encoded road access and zone type. Probabilities are a
// softmax over negative squared distances to each class centroid.
type Centroid struct {
	Version int `json:"version"`
	// Mean and Std standardise pop_density, dist_tps and waste_volume.
	Mean [3]float64 `json:"mean"`
	Std  [3]float64 `json:"std"`
	// Zones seen during training. Unseen zones encode as all zeros.
	Zones     []model.ZoneType              `json:"zones"`
	Labels    []model.RiskLevel             `json:"labels"`
	Centroids map[model.RiskLevel][]float64 `json:"centroids"`
	Counts    map[model.RiskLevel]int       `json:"counts"`
}

// Fit trains a centroid model. samples and labels are index-aligned.
func Fit(samples []model.FeatureVector, labels []model.RiskLevel) (*Centroid, error) {
	if len(samples) == 0 {
		return nil, eris.New("classifier: no training samples")
	}
	if len(samples) != len(labels) {
		return nil, eris.Errorf("classifier: %d samples but %d labels", len(samples), len(labels))
	}

	zoneSeen := map[model.ZoneType]bool{}
	for i, s := range samples {
		if err := s.Validate(); err != nil {
			return nil, eris.Wrapf(err, "classifier: sample %d", i)
		}
		if labels[i].Rank() < 0 {
			return nil, eris.Errorf("classifier: sample %d has unknown label %q", i, labels[i])
		}
		zoneSeen[s.ZoneType] = true
	}

	c := &Centroid{
		Version:   centroidVersion,
		Centroids: map[model.RiskLevel][]float64{},
		Counts:    map[model.RiskLevel]int{},
	}
	for _, z := range model.ZoneTypes() {
		if zoneSeen[z] {
			c.Zones = append(c.Zones, z)
		}
	}

	n := float64(len(samples))
	for _, s := range samples {
		for j, v := range numeric(s) {
			c.Mean[j] += v / n
		}
	}
	for _, s := range samples {
		for j, v := range numeric(s) {
			d := v - c.Mean[j]
			c.Std[j] += d * d / n
		}
	}
	for j := range c.Std {
		c.Std[j] = math.Sqrt(c.Std[j])
		if c.Std[j] == 0 {
			c.Std[j] = 1
		}
	}

	for i, s := range samples {
		l := labels[i]
		x := c.encode(s)
		sum, ok := c.Centroids[l]
		if !ok {
			sum = make([]float64, len(x))
			c.Centroids[l] = sum
		}
		for j, v := range x {
			sum[j] += v
		}
		c.Counts[l]++
	}
	for l, sum := range c.Centroids {
		for j := range sum {
			sum[j] /= float64(c.Counts[l])
		}
	}
	for _, l := range model.RiskLevels() {
		if _, ok := c.Centroids[l]; ok {
			c.Labels = append(c.Labels, l)
		}
	}
	return c, nil
}

func numeric(fv model.FeatureVector) [3]float64 {
	return [3]float64{fv.PopDensity, fv.DistTPS, fv.WasteVolume}
}

func (c *Centroid) encode(fv model.FeatureVector) []float64 {
	roads := model.RoadAccesses()
	x := make([]float64, 0, 3+len(roads)+len(c.Zones))
	for j, v := range numeric(fv) {
		x = append(x, (v-c.Mean[j])/c.Std[j])
	}
	for _, r := range roads {
		x = append(x, indicator(fv.RoadAccess == r))
	}
	for _, z := range c.Zones {
		x = append(x, indicator(fv.ZoneType == z))
	}
	return x
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Classes implements Classifier.
func (c *Centroid) Classes() []model.RiskLevel {
	return slices.Clone(c.Labels)
}

// PredictProba implements Classifier.
func (c *Centroid) PredictProba(_ context.Context, fv model.FeatureVector) (map[model.RiskLevel]float64, error) {
	if err := fv.Validate(); err != nil {
		return nil, err
	}
	x := c.encode(fv)

	dist := make([]float64, len(c.Labels))
	minD := math.Inf(1)
	for i, l := range c.Labels {
		cen := c.Centroids[l]
		if len(cen) != len(x) {
			return nil, eris.Errorf("classifier: centroid %s has %d dims, want %d", l, len(cen), len(x))
		}
		var d float64
		for j := range x {
			diff := x[j] - cen[j]
			d += diff * diff
		}
		dist[i] = d
		minD = math.Min(minD, d)
	}

	out := make(map[model.RiskLevel]float64, len(c.Labels))
	var total float64
	for i, l := range c.Labels {
		w := math.Exp(-(dist[i] - minD))
		out[l] = w
		total += w
	}
	for l := range out {
		out[l] /= total
	}
	return out, nil
}

// Predict implements Classifier. It returns the most probable class; ties go
// to the lower risk level.
func (c *Centroid) Predict(ctx context.Context, fv model.FeatureVector) (model.RiskLevel, error) {
	probs, err := c.PredictProba(ctx, fv)
	if err != nil {
		return "", err
	}
	var best model.RiskLevel
	bestP := -1.0
	for _, l := range c.Labels {
		if probs[l] > bestP {
			best, bestP = l, probs[l]
		}
	}
	return best, nil
}

// Save writes the model as JSON, creating parent directories.
func (c *Centroid) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "classifier: create model dir for %s", path)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return eris.Wrap(err, "classifier: marshal model")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return eris.Wrapf(err, "classifier: write model %s", path)
	}
	return nil
}

// Load reads a model written by Save. A missing file yields an error
// matching both os.ErrNotExist and ErrNotTrained.
func Load(path string) (*Centroid, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(notTrained{err}, "classifier: load model %s", path)
		}
		return nil, eris.Wrapf(err, "classifier: load model %s", path)
	}

	var c Centroid
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "classifier: parse model %s", path)
	}
	if c.Version != centroidVersion {
		return nil, eris.Errorf("classifier: model %s has version %d, want %d", path, c.Version, centroidVersion)
	}
	if len(c.Labels) == 0 {
		return nil, eris.Errorf("classifier: model %s has no classes", path)
	}
	for j, s := range c.Std {
		if s <= 0 {
			return nil, eris.Errorf("classifier: model %s has invalid std[%d]=%g", path, j, s)
		}
	}
	return &c, nil
}

// notTrained ties a missing model file to ErrNotTrained.
type notTrained struct{ err error }

func (e notTrained) Error() string   { return e.err.Error() }
func (e notTrained) Unwrap() []error { return []error{ErrNotTrained, e.err} }
