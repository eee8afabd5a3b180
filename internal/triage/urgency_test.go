package triage

import (
	"testing"
)

func TestScoreUrgency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pred     Prediction
		risk     RiskLevel
		priority int
		conf     int
	}{
		{
			name:     "low",
			pred:     Prediction{Class: 0, Probabilities: []float64{0.5, 0.2, 0.2, 0.1}},
			risk:     RiskLow,
			priority: 22,
			conf:     50,
		},
		{
			name:     "high",
			pred:     Prediction{Class: 2, Probabilities: []float64{0.1, 0.1, 0.7, 0.1}},
			risk:     RiskHigh,
			priority: 82,
			conf:     70,
		},
		{
			name:     "critical collapses to high",
			pred:     Prediction{Class: 3, Probabilities: []float64{0.05, 0.05, 0.1, 0.8}},
			risk:     RiskHigh,
			priority: 98,
			conf:     80,
		},
		{
			name:     "certain critical hits ceiling",
			pred:     Prediction{Class: 3, Probabilities: []float64{0, 0, 0, 1}},
			risk:     RiskHigh,
			priority: 100,
			conf:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ScoreUrgency(tt.pred)
			if err != nil {
				t.Fatalf("ScoreUrgency: %v", err)
			}
			if got.RiskLevel != tt.risk {
				t.Errorf("risk = %s, want %s", got.RiskLevel, tt.risk)
			}
			if got.PriorityScore != tt.priority {
				t.Errorf("priority = %d, want %d", got.PriorityScore, tt.priority)
			}
			if got.Confidence != tt.conf {
				t.Errorf("confidence = %d, want %d", got.Confidence, tt.conf)
			}
			if got.TriageLevel != tt.pred.Class {
				t.Errorf("triage level = %d, want %d", got.TriageLevel, tt.pred.Class)
			}
		})
	}
}

func TestScoreUrgencyStaysInBand(t *testing.T) {
	t.Parallel()

	for class := 0; class < UrgencyClassCount; class++ {
		for _, top := range []float64{0, 0.25, 0.4, 0.99, 1} {
			probs := make([]float64, UrgencyClassCount)
			probs[class] = top
			got, err := ScoreUrgency(Prediction{Class: class, Probabilities: probs})
			if err != nil {
				t.Fatalf("class %d: %v", class, err)
			}
			band := priorityBands[class]
			if got.PriorityScore < band.min || got.PriorityScore > band.max {
				t.Errorf("class %d top %v: priority %d outside [%d,%d]",
					class, top, got.PriorityScore, band.min, band.max)
			}
		}
	}
}

func TestScoreUrgencyRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := ScoreUrgency(Prediction{Class: 0, Probabilities: []float64{1}}); err == nil {
		t.Error("expected error for short probability vector")
	}
	if _, err := ScoreUrgency(Prediction{Class: 4, Probabilities: []float64{0.25, 0.25, 0.25, 0.25}}); err == nil {
		t.Error("expected error for out of range class")
	}
}

func TestWaitingTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		priority int
		want     int
	}{
		{100, 5},
		{80, 5},
		{79, 15},
		{60, 15},
		{59, 30},
		{40, 30},
		{39, 45},
		{10, 45},
	}
	for _, tt := range tests {
		if got := WaitingTime(tt.priority); got != tt.want {
			t.Errorf("WaitingTime(%d) = %d, want %d", tt.priority, got, tt.want)
		}
	}
}
