package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/classifier"
	"github.com/sells-group/waste-risk/internal/config"
	"github.com/sells-group/waste-risk/internal/estimate"
	"github.com/sells-group/waste-risk/internal/level"
	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/pipeline"
	"github.com/sells-group/waste-risk/internal/scorer"
	"github.com/sells-group/waste-risk/internal/store"
	"github.com/sells-group/waste-risk/pkg/modelserver"
)

// presetRegistry returns the built-in presets plus any from the configured
// presets file. Every preset is validated here, once.
func presetRegistry(c *config.Config) (*scorer.Registry, error) {
	reg := scorer.NewRegistry()
	if c.Scoring.PresetsFile != "" {
		if err := reg.LoadPresets(c.Scoring.PresetsFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// batchOptions resolves a preset name and binning into pipeline options.
func batchOptions(c *config.Config, presetName, binning string, seed uint64, roads estimate.RoadSampler) (pipeline.Options, error) {
	reg, err := presetRegistry(c)
	if err != nil {
		return pipeline.Options{}, err
	}
	p, err := reg.Lookup(presetName)
	if err != nil {
		return pipeline.Options{}, err
	}
	b, err := level.ParseBinning(binning)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Preset:               p,
		Binning:              b,
		Seed:                 seed,
		MinPrimaryReferences: c.OSM.MinTPS,
		Workers:              c.Scoring.Workers,
		Roads:                roads,
	}, nil
}

// persistBatch stores a scored batch when a store is configured. It returns
// nil without error when persistence is disabled.
func persistBatch(ctx context.Context, c *config.Config, source model.RunSource, b *pipeline.Batch) (*model.Run, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	defer st.Close() //nolint:errcheck

	run, err := store.SaveBatch(ctx, st, model.Run{
		Source:  source,
		Preset:  b.Preset,
		Binning: string(b.Binning),
		Seed:    b.Seed,
	}, b.Points)
	if err != nil {
		return nil, err
	}
	zap.L().Info("run stored", zap.String("run_id", run.ID), zap.Int("points", run.PointCount))
	return run, nil
}

// newProvider builds the classifier provider for the configured backend and
// returns the model name reported by model-info.
func newProvider(c *config.Config, modelPath string) (classifier.Provider, string, error) {
	switch c.Classifier.Backend {
	case config.BackendFile:
		return classifier.NewFileProvider(modelPath), classifier.CentroidName, nil
	case config.BackendRemote:
		client := modelserver.NewClient(c.Classifier.RemoteURL,
			modelserver.WithTimeout(time.Duration(c.Classifier.TimeoutSecs)*time.Second),
			modelserver.WithRateLimit(c.Classifier.RequestsPerSec),
		)
		return classifier.NewRemote(client), classifier.RemoteName, nil
	}
	return nil, "", eris.Errorf("unknown classifier backend %q", c.Classifier.Backend)
}

// summary is the machine-readable result printed by batch commands.
type summary struct {
	Output     string                  `json:"output"`
	Points     int                     `json:"points"`
	Preset     string                  `json:"preset"`
	Binning    string                  `json:"binning"`
	References string                  `json:"references,omitempty"`
	Degenerate []string                `json:"degenerate,omitempty"`
	Levels     map[model.RiskLevel]int `json:"levels"`
	RunID      string                  `json:"run_id,omitempty"`
}

func batchSummary(out string, b *pipeline.Batch, run *model.Run) summary {
	s := summary{
		Output:     out,
		Points:     len(b.Points),
		Preset:     b.Preset,
		Binning:    string(b.Binning),
		References: string(b.References),
		Degenerate: b.Degenerate,
		Levels:     pipeline.Counts(b.Points),
	}
	if run != nil {
		s.RunID = run.ID
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
