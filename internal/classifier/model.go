// Package classifier serves the trained urgency and condition classifiers.
// Models are multinomial softmax classifiers decoded from YAML artifacts and
// are immutable once loaded.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/drfirst/go-triage/internal/triage"
)

// Artifact file names inside a model directory
const (
	UrgencyFile   = "urgency.yaml"
	ConditionFile = "condition.yaml"
)

// ErrInvalidModel indicates an artifact whose shapes are inconsistent
var ErrInvalidModel = errors.New("invalid model artifact")

// Scaler standardizes inputs as (x - mean) / scale before scoring
type Scaler struct {
	Mean  []float64 `yaml:"mean" json:"mean"`
	Scale []float64 `yaml:"scale" json:"scale"`
}

// Artifact is the on-disk form of a model
type Artifact struct {
	Name     string      `yaml:"name,omitempty" json:"name,omitempty"`
	Version  string      `yaml:"version,omitempty" json:"version,omitempty"`
	Features []string    `yaml:"features" json:"features"`
	Classes  []string    `yaml:"classes" json:"classes"`
	Scaler   *Scaler     `yaml:"scaler,omitempty" json:"scaler,omitempty"`
	Weights  [][]float64 `yaml:"weights" json:"weights"`
	Bias     []float64   `yaml:"bias" json:"bias"`
}

// Model is a loaded softmax classifier. Safe for concurrent use.
type Model struct {
	name     string
	version  string
	features []string
	classes  []string
	mean     []float64
	scale    []float64
	weights  [][]float64
	bias     []float64
}

// New validates an artifact and builds a model from it
func New(a Artifact) (*Model, error) {
	nf, nc := len(a.Features), len(a.Classes)
	if nf == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidModel)
	}
	if nc == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidModel)
	}
	if len(a.Weights) != nc {
		return nil, fmt.Errorf("%w: %d weight rows for %d classes", ErrInvalidModel, len(a.Weights), nc)
	}
	for i, row := range a.Weights {
		if len(row) != nf {
			return nil, fmt.Errorf("%w: weight row %d has %d columns, want %d", ErrInvalidModel, i, len(row), nf)
		}
	}
	if len(a.Bias) != nc {
		return nil, fmt.Errorf("%w: %d bias terms for %d classes", ErrInvalidModel, len(a.Bias), nc)
	}

	m := &Model{
		name:     a.Name,
		version:  a.Version,
		features: append([]string(nil), a.Features...),
		classes:  append([]string(nil), a.Classes...),
		weights:  make([][]float64, nc),
		bias:     append([]float64(nil), a.Bias...),
	}
	for i, row := range a.Weights {
		m.weights[i] = append([]float64(nil), row...)
	}

	if a.Scaler != nil {
		if len(a.Scaler.Mean) != nf || len(a.Scaler.Scale) != nf {
			return nil, fmt.Errorf("%w: scaler sized %d/%d for %d features",
				ErrInvalidModel, len(a.Scaler.Mean), len(a.Scaler.Scale), nf)
		}
		for i, s := range a.Scaler.Scale {
			if s == 0 {
				return nil, fmt.Errorf("%w: zero scale for feature %q", ErrInvalidModel, a.Features[i])
			}
		}
		m.mean = append([]float64(nil), a.Scaler.Mean...)
		m.scale = append([]float64(nil), a.Scaler.Scale...)
	}

	return m, nil
}

// Load reads and validates a model artifact from a YAML file
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}

	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if a.Name == "" {
		a.Name = filepath.Base(path)
	}

	m, err := New(a)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

// Name returns the artifact name
func (m *Model) Name() string { return m.name }

// Version returns the artifact version, if any
func (m *Model) Version() string { return m.version }

// Classes returns class labels in probability order
func (m *Model) Classes() []string { return m.classes }

// FeatureNames returns the trained input schema
func (m *Model) FeatureNames() []string { return m.features }

// SymptomColumns returns the symptom schema of a condition model, which is
// its feature schema
func (m *Model) SymptomColumns() []string { return m.features }

// PredictWithProbabilities scores x and returns the argmax class with the full
// softmax distribution. Ties resolve to the lowest class index.
func (m *Model) PredictWithProbabilities(x triage.FeatureVector) (triage.Prediction, error) {
	if len(x) != len(m.features) {
		return triage.Prediction{}, fmt.Errorf("%w: %s expects %d features, got %d",
			triage.ErrSchemaMismatch, m.name, len(m.features), len(x))
	}

	input := x
	if m.scale != nil {
		input = make(triage.FeatureVector, len(x))
		for i, v := range x {
			input[i] = (v - m.mean[i]) / m.scale[i]
		}
	}

	logits := make([]float64, len(m.classes))
	for c, row := range m.weights {
		z := m.bias[c]
		for i, w := range row {
			z += w * input[i]
		}
		logits[c] = z
	}

	probs := softmax(logits)
	best := 0
	for c, p := range probs {
		if p > probs[best] {
			best = c
		}
	}

	return triage.Prediction{Class: best, Probabilities: probs}, nil
}

func softmax(logits []float64) []float64 {
	peak := math.Inf(-1)
	for _, z := range logits {
		if z > peak {
			peak = z
		}
	}

	out := make([]float64, len(logits))
	sum := 0.0
	for i, z := range logits {
		out[i] = math.Exp(z - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
