package triage

import "testing"

func TestConditionConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		probs []float64
		want  int
	}{
		{"empty", nil, 5},
		{"uniform", []float64{0.25, 0.25, 0.25, 0.25}, 13},
		{"certain of four", []float64{1, 0, 0, 0}, 45},
		{"three classes", []float64{0.8, 0.1, 0.1}, 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ConditionConfidence(tt.probs); got != tt.want {
				t.Errorf("ConditionConfidence = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConditionConfidenceCapped(t *testing.T) {
	t.Parallel()

	probs := make([]float64, 1000)
	probs[0] = 0.9
	for i := 1; i < len(probs); i++ {
		probs[i] = 0.1 / 999
	}
	if got := ConditionConfidence(probs); got != 99 {
		t.Errorf("ConditionConfidence = %d, want 99", got)
	}
}

func TestTopConditions(t *testing.T) {
	t.Parallel()

	labels := []string{"a", "b", "c", "d"}
	got := TopConditions([]float64{0.1, 0.4, 0.4, 0.1}, labels, 3)

	want := []ConditionCandidate{
		{"b", 44.4},
		{"c", 44.4},
		{"a", 11.1},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopConditionsFewerClasses(t *testing.T) {
	t.Parallel()

	got := TopConditions([]float64{0.3, 0.7}, []string{"x", "y"}, TopConditionCount)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Condition != "y" || got[0].Probability != 70 {
		t.Errorf("first = %+v", got[0])
	}
}

func TestScoreCondition(t *testing.T) {
	t.Parallel()

	labels := []string{"Pneumonia", "Heart attack", "Common cold"}
	got, err := ScoreCondition(Prediction{Class: 0, Probabilities: []float64{0.8, 0.1, 0.1}}, labels)
	if err != nil {
		t.Fatalf("ScoreCondition: %v", err)
	}
	if got.Condition != "Pneumonia" {
		t.Errorf("condition = %q", got.Condition)
	}
	if got.Confidence != 36 {
		t.Errorf("confidence = %d, want 36", got.Confidence)
	}
	if len(got.TopConditions) != 3 {
		t.Errorf("top conditions = %d, want 3", len(got.TopConditions))
	}

	if _, err := ScoreCondition(Prediction{Class: 0, Probabilities: []float64{1}}, labels); err == nil {
		t.Error("expected error for probability length mismatch")
	}
}
