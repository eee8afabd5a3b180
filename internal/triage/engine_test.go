package triage

import (
	"context"
	"errors"
	"testing"
)

type fakeClassifier struct {
	classes  []string
	features []string
	columns  []string
	pred     Prediction
	err      error
	calls    int
}

func (f *fakeClassifier) Classes() []string        { return f.classes }
func (f *fakeClassifier) FeatureNames() []string   { return f.features }
func (f *fakeClassifier) SymptomColumns() []string { return f.columns }

func (f *fakeClassifier) PredictWithProbabilities(x FeatureVector) (Prediction, error) {
	f.calls++
	if f.err != nil {
		return Prediction{}, f.err
	}
	if len(x) != len(f.features) {
		return Prediction{}, ErrSchemaMismatch
	}
	return f.pred, nil
}

func newFakes() (*fakeClassifier, *fakeClassifier) {
	urgency := &fakeClassifier{
		classes:  []string{"low", "medium", "high", "critical"},
		features: UrgencyFeatureNames,
		pred:     Prediction{Class: 2, Probabilities: []float64{0.1, 0.1, 0.7, 0.1}},
	}
	columns := []string{"sharp chest pain", "shortness of breath", "fever", "cough"}
	condition := &fakeClassifier{
		classes:  []string{"Pneumonia", "Heart attack", "Common cold"},
		features: columns,
		columns:  columns,
		pred:     Prediction{Class: 0, Probabilities: []float64{0.8, 0.1, 0.1}},
	}
	return urgency, condition
}

func severeIntake() *IntakeRecord {
	return &IntakeRecord{
		Age:    70,
		Gender: "male",
		Vitals: Vitals{
			HeartRate:        Float(110),
			SystolicBP:       Float(150),
			DiastolicBP:      Float(95),
			Temperature:      Float(101.5),
			OxygenSaturation: Float(92),
		},
		Symptoms:   []string{"Shortness of Breath", "Fever", "Cough"},
		Conditions: []string{"COPD"},
	}
}

func TestEngineAssess(t *testing.T) {
	t.Parallel()

	urgency, condition := newFakes()
	e, err := NewEngine(urgency, condition, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	a, err := e.Assess(context.Background(), severeIntake())
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if a.RiskLevel != RiskHigh {
		t.Errorf("risk = %s", a.RiskLevel)
	}
	if a.PriorityScore != 82 {
		t.Errorf("priority = %d, want 82", a.PriorityScore)
	}
	if a.WaitingTimeMinutes != 5 {
		t.Errorf("waiting = %d, want 5", a.WaitingTimeMinutes)
	}
	if a.UrgencyConfidence != 70 || a.ConditionConfidence != 36 {
		t.Errorf("confidences = %d/%d, want 70/36", a.UrgencyConfidence, a.ConditionConfidence)
	}
	if a.Confidence != 56 {
		t.Errorf("combined confidence = %d, want 56", a.Confidence)
	}
	if a.PredictedCondition != "Pneumonia" || a.Department != "Pulmonology" {
		t.Errorf("condition/department = %q/%q", a.PredictedCondition, a.Department)
	}
	if a.EstimatedLOSDays != 15 || a.LOSConfidence != 0.6 {
		t.Errorf("los = %d/%v, want 15/0.6", a.EstimatedLOSDays, a.LOSConfidence)
	}
	if len(a.TopConditions) != 3 {
		t.Errorf("top conditions = %d", len(a.TopConditions))
	}
	if len(a.ContributingFactors) == 0 || a.ContributingFactors[0].Name != "Age Factor" {
		t.Errorf("factors = %+v", a.ContributingFactors)
	}
	if urgency.calls != 1 || condition.calls != 1 {
		t.Errorf("classifier calls = %d/%d, want 1/1", urgency.calls, condition.calls)
	}
}

func TestNewEngineSchemaMismatch(t *testing.T) {
	t.Parallel()

	urgency, condition := newFakes()
	urgency.features = []string{"age", "heart_rate"}

	_, err := NewEngine(urgency, condition, nil)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}

	urgency, condition = newFakes()
	condition.features = []string{"fever", "cough"}
	_, err = NewEngine(urgency, condition, nil)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestNewEngineRequiresFourUrgencyClasses(t *testing.T) {
	t.Parallel()

	urgency, condition := newFakes()
	urgency.classes = []string{"low", "high"}

	if _, err := NewEngine(urgency, condition, nil); err == nil {
		t.Fatal("expected error for urgency classifier with 2 classes")
	}
}

func TestEngineAssessSchemaDriftAfterConstruction(t *testing.T) {
	t.Parallel()

	urgency, condition := newFakes()
	e, err := NewEngine(urgency, condition, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	urgency.features = []string{"age"}
	_, err = e.Assess(context.Background(), severeIntake())
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestEngineAssessClassifierFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	urgency, condition := newFakes()
	condition.err = boom

	e, err := NewEngine(urgency, condition, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	a, err := e.Assess(context.Background(), severeIntake())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if a != nil {
		t.Error("expected no partial assessment")
	}
}

func TestEngineAssessNilIntake(t *testing.T) {
	t.Parallel()

	urgency, condition := newFakes()
	e, err := NewEngine(urgency, condition, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	a, err := e.Assess(context.Background(), nil)
	if !errors.Is(err, ErrNoIntake) {
		t.Fatalf("err = %v, want ErrNoIntake", err)
	}
	if a != nil {
		t.Error("expected no assessment")
	}
}

func TestBlendConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct{ u, c, want int }{
		{70, 36, 56},
		{100, 0, 60},
		{0, 100, 40},
		{50, 51, 50},
	}
	for _, tt := range tests {
		if got := BlendConfidence(tt.u, tt.c); got != tt.want {
			t.Errorf("BlendConfidence(%d, %d) = %d, want %d", tt.u, tt.c, got, tt.want)
		}
	}
}
