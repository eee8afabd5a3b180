package triage

import "math"

// priorityBand is the score range owned by an urgency class
type priorityBand struct {
	min, max int
}

// priorityBands indexed by urgency class: low, medium, high, critical
var priorityBands = [UrgencyClassCount]priorityBand{
	{10, 35},
	{36, 65},
	{66, 89},
	{90, 100},
}

// UrgencyScore is the derived view of an urgency classifier output
type UrgencyScore struct {
	TriageLevel   int
	RiskLevel     RiskLevel
	PriorityScore int
	Confidence    int
}

// RiskLevelForClass collapses the 4 urgency classes into 3 tiers
func RiskLevelForClass(class int) RiskLevel {
	switch class {
	case 0:
		return RiskLow
	case 1:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ScoreUrgency derives tier, priority and confidence from an urgency prediction.
// The priority score sits inside the class band proportionally to the winning
// probability mass, so confident predictions land near the top of their band.
func ScoreUrgency(pred Prediction) (UrgencyScore, error) {
	if err := checkPrediction("urgency", pred, UrgencyClassCount); err != nil {
		return UrgencyScore{}, err
	}

	top := maxProbability(pred.Probabilities)
	band := priorityBands[pred.Class]

	score := int(float64(band.min) + float64(band.max-band.min)*top)
	score = clampInt(score, band.min, band.max)

	return UrgencyScore{
		TriageLevel:   pred.Class,
		RiskLevel:     RiskLevelForClass(pred.Class),
		PriorityScore: score,
		Confidence:    int(math.Round(top * 100)),
	}, nil
}

// WaitingTime estimates minutes until the patient is seen
func WaitingTime(priorityScore int) int {
	switch {
	case priorityScore >= 80:
		return 5
	case priorityScore >= 60:
		return 15
	case priorityScore >= 40:
		return 30
	default:
		return 45
	}
}

func maxProbability(probs []float64) float64 {
	top := 0.0
	for _, p := range probs {
		if p > top {
			top = p
		}
	}
	return top
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
