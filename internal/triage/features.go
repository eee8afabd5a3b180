package triage

import "strings"

// Defaults applied when an urgency input vital is missing
const (
	DefaultHeartRate        = 75.0
	DefaultSystolicBP       = 120.0
	DefaultOxygenSaturation = 98.0
	DefaultTemperatureC     = 37.0
)

// SymptomMapping maps intake display names to classifier symptom columns
var SymptomMapping = map[string]string{
	"Chest Pain":            "sharp chest pain",
	"Shortness of Breath":   "shortness of breath",
	"Fever":                 "fever",
	"Cough":                 "cough",
	"Headache":              "headache",
	"Dizziness":             "dizziness",
	"Nausea":                "nausea",
	"Abdominal Pain":        "sharp abdominal pain",
	"Back Pain":             "back pain",
	"Joint Pain":            "joint pain",
	"Fatigue":               "fatigue",
	"Weight Loss":           "recent weight loss",
	"Vision Problems":       "diminished vision",
	"Numbness":              "paresthesia",
	"Seizures":              "seizures",
	"Bleeding":              "nosebleed",
	"Swelling":              "peripheral edema",
	"Skin Rash":             "skin rash",
	"Difficulty Swallowing": "difficulty in swallowing",
	"Anxiety":               "anxiety and nervousness",
}

// FahrenheitToCelsius converts a temperature reading
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// ChronicConditionCount counts conditions, ignoring the literal "none"
func ChronicConditionCount(conditions []string) int {
	n := 0
	for _, c := range conditions {
		if strings.ToLower(c) != "none" {
			n++
		}
	}
	return n
}

// PrepareUrgencyFeatures builds the urgency vector in trained schema order:
// [age, heart_rate, systolic_bp, oxygen_saturation, temp_c, chronic_count].
// Zero readings are treated like missing ones.
func PrepareUrgencyFeatures(age int, heartRate, systolicBP, oxygenSaturation, temperatureF *float64, chronicCount int) FeatureVector {
	tempC := DefaultTemperatureC
	if present(temperatureF) {
		tempC = FahrenheitToCelsius(*temperatureF)
	}

	return FeatureVector{
		float64(age),
		valueOr(heartRate, DefaultHeartRate),
		valueOr(systolicBP, DefaultSystolicBP),
		valueOr(oxygenSaturation, DefaultOxygenSaturation),
		tempC,
		float64(chronicCount),
	}
}

// CanonicalSymptom returns the classifier column name for an intake symptom
func CanonicalSymptom(symptom string) string {
	if mapped, ok := SymptomMapping[symptom]; ok {
		return mapped
	}
	return strings.ToLower(symptom)
}

// PrepareSymptomFeatures builds a binary vector sized to columns. Each symptom
// sets the first column that equals, contains, or is contained by its
// canonical name. Unmatched symptoms are dropped.
func PrepareSymptomFeatures(symptoms []string, columns []string) FeatureVector {
	vec := make(FeatureVector, len(columns))

	for _, symptom := range symptoms {
		name := CanonicalSymptom(symptom)
		for i, col := range columns {
			if name == col || strings.Contains(col, name) || strings.Contains(name, col) {
				vec[i] = 1
				break
			}
		}
	}

	return vec
}

func present(v *float64) bool {
	return v != nil && *v != 0
}

func valueOr(v *float64, def float64) float64 {
	if present(v) {
		return *v
	}
	return def
}
