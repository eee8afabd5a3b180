package triage

import (
	"fmt"
	"sort"
	"strconv"
)

// MaxFactors is the number of contributing factors kept after ranking
const MaxFactors = 6

// vitalRange is a normal range for a scored vital
type vitalRange struct {
	name string
	unit string
	low  float64
	high float64
}

var (
	heartRateRange   = vitalRange{"Heart Rate", "bpm", 60, 100}
	systolicRange    = vitalRange{"Blood Pressure (Systolic)", "mmHg", 90, 140}
	temperatureRange = vitalRange{"Temperature", "°F", 97.0, 99.5}
	spo2Range        = vitalRange{"Oxygen Saturation (SpO2)", "%", 95, 100}
	respiratoryRange = vitalRange{"Respiratory Rate", "/min", 12, 20}
)

// scoreVital returns the impact and direction of a reading against its range.
// In-range readings still produce a small positive factor.
func scoreVital(r vitalRange, value float64) (impact int, positive bool) {
	var deviation float64
	switch {
	case value < r.low:
		deviation = (r.low - value) / r.low
	case value > r.high:
		deviation = (value - r.high) / r.high
	default:
		return max(int((1-deviation)*15), 5), true
	}
	return min(int(deviation*100+10), 100), false
}

// ageFactor scores the patient's age independently of vitals
func ageFactor(age int) ContributingFactor {
	var impact int
	if age > 50 {
		impact = min(int(float64(age)/2), 50)
	} else {
		impact = max(int(float64(age)/5), 5)
	}
	return ContributingFactor{
		Name:       "Age Factor",
		Value:      fmt.Sprintf("%d years", age),
		Impact:     impact,
		IsPositive: age < 60,
	}
}

// RankFactors scores each measured vital and the patient's age, returning at
// most MaxFactors sorted by impact descending. Ties keep insertion order:
// heart rate, blood pressure, temperature, SpO2, respiratory rate, then age.
// Diastolic pressure is shown with systolic and never scored on its own.
func RankFactors(v Vitals, age int) []ContributingFactor {
	factors := make([]ContributingFactor, 0, 6)

	add := func(r vitalRange, value *float64, display string) {
		if value == nil {
			return
		}
		impact, positive := scoreVital(r, *value)
		if display == "" {
			display = formatReading(*value) + " " + r.unit
		}
		factors = append(factors, ContributingFactor{
			Name:       r.name,
			Value:      display,
			Impact:     impact,
			IsPositive: positive,
		})
	}

	add(heartRateRange, v.HeartRate, "")
	if v.SystolicBP != nil && present(v.DiastolicBP) {
		add(systolicRange, v.SystolicBP,
			formatReading(*v.SystolicBP)+"/"+formatReading(*v.DiastolicBP)+" "+systolicRange.unit)
	} else {
		add(systolicRange, v.SystolicBP, "")
	}
	add(temperatureRange, v.Temperature, "")
	add(spo2Range, v.OxygenSaturation, "")
	add(respiratoryRange, v.RespiratoryRate, "")

	factors = append(factors, ageFactor(age))

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Impact > factors[j].Impact
	})

	if len(factors) > MaxFactors {
		factors = factors[:MaxFactors]
	}
	return factors
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
