package triage

import (
	"errors"
	"math"
	"sort"
)

// TopConditionCount is the number of condition candidates returned for display
const TopConditionCount = 3

const (
	ratioCeiling    = 100.0
	ratioScoreMax   = 85.0
	separationScale = 15.0
	separationEps   = 1e-10
	minConfidence   = 5
	maxConfidence   = 99
)

// ConditionScore is the derived view of a condition classifier output
type ConditionScore struct {
	Condition     string
	Confidence    int
	TopConditions []ConditionCandidate
}

// ConditionConfidence calibrates a many-class distribution into a 5–99 score.
// Raw max probability is meaningless with hundreds of classes, so the score
// measures how far the top class stands above uniform chance (log-scaled,
// capped at 85) plus a bonus for separation from the runner-up (up to 15).
func ConditionConfidence(probs []float64) int {
	n := len(probs)
	if n == 0 {
		return minConfidence
	}

	top, second := topTwo(probs)
	baseline := 1.0 / float64(n)
	ratio := top / baseline

	ratioScore := math.Min(math.Log1p(ratio)/math.Log1p(ratioCeiling)*ratioScoreMax, ratioScoreMax)
	separation := (top - second) / (top + separationEps)
	bonus := separation * separationScale

	return clampInt(int(math.Round(ratioScore+bonus)), minConfidence, maxConfidence)
}

// TopConditions returns the k most probable labels with probabilities
// rescaled to sum to 100 among themselves. Ties keep class order.
func TopConditions(probs []float64, labels []string, k int) []ConditionCandidate {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})
	if k > len(idx) {
		k = len(idx)
	}
	idx = idx[:k]

	sum := 0.0
	for _, i := range idx {
		sum += probs[i]
	}

	out := make([]ConditionCandidate, 0, k)
	for _, i := range idx {
		p := 0.0
		if sum > 0 {
			p = round1(probs[i] / sum * 100)
		}
		out = append(out, ConditionCandidate{Condition: labels[i], Probability: p})
	}
	return out
}

// ScoreCondition derives the predicted condition, calibrated confidence and
// display candidates from a condition prediction
func ScoreCondition(pred Prediction, labels []string) (ConditionScore, error) {
	if len(labels) == 0 {
		return ConditionScore{}, errors.New("condition classifier has no classes")
	}
	if err := checkPrediction("condition", pred, len(labels)); err != nil {
		return ConditionScore{}, err
	}

	return ConditionScore{
		Condition:     labels[pred.Class],
		Confidence:    ConditionConfidence(pred.Probabilities),
		TopConditions: TopConditions(pred.Probabilities, labels, TopConditionCount),
	}, nil
}

func topTwo(probs []float64) (top, second float64) {
	top, second = math.Inf(-1), 0.0
	topIdx := -1
	for i, p := range probs {
		if p > top {
			top, topIdx = p, i
		}
	}
	if len(probs) < 2 {
		return top, 0
	}
	second = math.Inf(-1)
	for i, p := range probs {
		if i != topIdx && p > second {
			second = p
		}
	}
	return top, second
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
