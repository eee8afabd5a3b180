package triage

import (
	"math"
	"strings"
)

// Placeholders used by the length-of-stay rules when a vital is absent
const (
	losDefaultHeartRate   = 75
	losDefaultSystolic    = 120
	losDefaultSpO2        = 98
	losDefaultTemperature = 98.6
)

// LengthOfStay is the rule-based stay estimate
type LengthOfStay struct {
	Days       int
	Confidence float64
}

// losCategory is a condition-name keyword group with its day adjustment
type losCategory struct {
	keywords []string
	adjust   func(days int) int
}

// losCategories are checked in order; the first matching group applies
var losCategories = []losCategory{
	{[]string{"cardiac", "heart", "myocardial", "stroke", "neuro"},
		func(d int) int { return d + 3 }},
	{[]string{"pneumonia", "asthma", "copd", "respiratory", "lung"},
		func(d int) int { return d + 2 }},
	{[]string{"infection", "sepsis", "viral", "bacterial", "covid"},
		func(d int) int { return d + 1 }},
	{[]string{"rash", "dermatitis", "acne", "ent", "ear", "nose", "throat"},
		func(d int) int { return max(1, d-1) }},
}

func baseStayDays(risk RiskLevel) int {
	switch RiskLevel(strings.ToLower(string(risk))) {
	case RiskHigh:
		return 7
	case RiskMedium:
		return 3
	default:
		return 1
	}
}

// EstimateLengthOfStay accumulates whole-day rules over the risk tier,
// condition name, age and vitals. Absent vitals take normal placeholders and
// add nothing. Readings are truncated to whole units before range checks.
func EstimateLengthOfStay(risk RiskLevel, condition string, age int, v Vitals) LengthOfStay {
	days := baseStayDays(risk)
	confidence := 1.0

	lower := strings.ToLower(condition)
	for _, cat := range losCategories {
		if containsAny(lower, cat.keywords) {
			days = cat.adjust(days)
			break
		}
	}

	if age > 60 {
		days += (age - 60) / 10
	}

	hr := int(valueOr(v.HeartRate, losDefaultHeartRate))
	if hr < 60 || hr > 100 {
		days++
		confidence -= 0.1
	}

	sys := int(valueOr(v.SystolicBP, losDefaultSystolic))
	if sys > 140 || sys < 90 {
		days++
		confidence -= 0.1
	}

	spo2 := int(valueOr(v.OxygenSaturation, losDefaultSpO2))
	if spo2 < 95 {
		days += 2
		confidence -= 0.2
	}

	temp := valueOr(v.Temperature, losDefaultTemperature)
	if temp > 100.4 || temp < 96.0 {
		days++
	}

	return LengthOfStay{
		Days:       days,
		Confidence: round2(math.Max(0.1, math.Min(1.0, confidence))),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
