// Package scorer computes the composite waste risk score of a batch of
// feature vectors: min-max normalised numeric features and the road access
// penalty combined under a named weight preset.
package scorer

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// weightTolerance is the allowed deviation of a preset's weight sum from 1.
const weightTolerance = 1e-9

// Weights are the per-feature coefficients of the composite score.
type Weights struct {
	Waste float64 `yaml:"waste" json:"waste"`
	Pop   float64 `yaml:"pop" json:"pop"`
	Dist  float64 `yaml:"dist" json:"dist"`
	Road  float64 `yaml:"road" json:"road"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Waste + w.Pop + w.Dist + w.Road
}

// Preset is a named weighting scheme.
type Preset struct {
	Name    string  `yaml:"name" json:"name"`
	Weights Weights `yaml:"weights" json:"weights"`
}

// Built-in preset names.
const (
	// PresetA is used for batches built from map data.
	PresetA = "A"
	// PresetB is used for synthetic training datasets.
	PresetB = "B"
)

var builtin = map[string]Preset{
	PresetA: {Name: PresetA, Weights: Weights{Waste: 0.35, Pop: 0.25, Dist: 0.20, Road: 0.20}},
	PresetB: {Name: PresetB, Weights: Weights{Waste: 0.40, Pop: 0.30, Dist: 0.10, Road: 0.20}},
}

// ValidatePreset checks that every weight is a non-negative finite number and
// that the weights sum to 1.
func ValidatePreset(p Preset) error {
	var errs []string

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}

	weights := map[string]float64{
		"waste": p.Weights.Waste,
		"pop":   p.Weights.Pop,
		"dist":  p.Weights.Dist,
		"road":  p.Weights.Road,
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := weights[name]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be finite", name))
		} else if w < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
		}
	}

	if sum := p.Weights.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.12g", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: preset %q invalid: %s", p.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Registry resolves presets by name. The zero value is not usable; use
// NewRegistry.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry returns a registry holding the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset, len(builtin))}
	for k, v := range builtin {
		r.presets[k] = v
	}
	return r
}

// Register validates and adds p, replacing any preset with the same name.
func (r *Registry) Register(p Preset) error {
	if err := ValidatePreset(p); err != nil {
		return err
	}
	r.presets[p.Name] = p
	return nil
}

// Lookup returns the preset called name.
func (r *Registry) Lookup(name string) (Preset, error) {
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, eris.Errorf("scorer: unknown preset %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names returns the registered preset names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for k := range r.presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// presetsFile is the on-disk layout of a custom presets file.
type presetsFile struct {
	Presets map[string]Weights `yaml:"presets"`
}

// LoadPresets reads additional presets from a YAML file of the form
//
//	presets:
//	  C: {waste: 0.5, pop: 0.2, dist: 0.2, road: 0.1}
//
// and registers them. Every preset is validated before any is added; the
// built-in presets cannot be redefined.
func (r *Registry) LoadPresets(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return eris.Wrapf(err, "scorer: read presets file %s", path)
	}

	var f presetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrapf(err, "scorer: parse presets file %s", path)
	}
	if len(f.Presets) == 0 {
		return eris.Errorf("scorer: presets file %s defines no presets", path)
	}

	loaded := make([]Preset, 0, len(f.Presets))
	for name, w := range f.Presets {
		if isBuiltin(name) {
			return eris.Errorf("scorer: presets file %s redefines built-in preset %q", path, name)
		}
		p := Preset{Name: name, Weights: w}
		if err := ValidatePreset(p); err != nil {
			return eris.Wrapf(err, "scorer: presets file %s", path)
		}
		loaded = append(loaded, p)
	}
	for _, p := range loaded {
		r.presets[p.Name] = p
	}
	return nil
}

func isBuiltin(name string) bool {
	for b := range builtin {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}
