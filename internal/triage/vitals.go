package triage

import (
	"strconv"
	"strings"
)

// RawVitals carries vital readings as received from devices or brokers.
// Blood pressure uses the "systolic/diastolic" form.
type RawVitals struct {
	HeartRate        string `json:"heart_rate,omitempty"`
	BloodPressure    string `json:"blood_pressure,omitempty"`
	Temperature      string `json:"temperature,omitempty"`
	OxygenSaturation string `json:"oxygen_saturation,omitempty"`
	RespiratoryRate  string `json:"respiratory_rate,omitempty"`
}

// ParseVitals converts raw readings into typed vitals. Anything that does not
// parse is left absent rather than reported.
func ParseVitals(raw RawVitals) Vitals {
	v := Vitals{
		HeartRate:        parseReading(raw.HeartRate),
		Temperature:      parseReading(raw.Temperature),
		OxygenSaturation: parseReading(raw.OxygenSaturation),
		RespiratoryRate:  parseReading(raw.RespiratoryRate),
	}
	if sys, dia, ok := ParseBloodPressure(raw.BloodPressure); ok {
		v.SystolicBP = &sys
		v.DiastolicBP = &dia
	}
	return v
}

// ParseBloodPressure splits a "systolic/diastolic" reading. Both parts may
// carry decimals as some devices report them. The diastolic part is
// optional; a bare number is taken as systolic with diastolic 0.
func ParseBloodPressure(s string) (systolic, diastolic float64, ok bool) {
	sysPart, diaPart, hasDia := strings.Cut(s, "/")

	sys := parseReading(sysPart)
	if sys == nil {
		return 0, 0, false
	}
	if !hasDia {
		return *sys, 0, true
	}
	dia := parseReading(diaPart)
	if dia == nil {
		return *sys, 0, true
	}
	return *sys, *dia, true
}

// FormatBloodPressure renders systolic/diastolic for display, "N/A" when absent
func FormatBloodPressure(v Vitals) string {
	return displayOrNA(v.SystolicBP) + "/" + displayOrNA(v.DiastolicBP)
}

// DisplayVitals renders all vitals as strings for API responses
func DisplayVitals(v Vitals) map[string]string {
	return map[string]string{
		"bloodPressure":    FormatBloodPressure(v),
		"heartRate":        displayOrNA(v.HeartRate),
		"temperature":      displayOrNA(v.Temperature),
		"oxygenSaturation": displayOrNA(v.OxygenSaturation),
		"respiratoryRate":  displayOrNA(v.RespiratoryRate),
	}
}

func parseReading(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func displayOrNA(v *float64) string {
	if !present(v) {
		return "N/A"
	}
	return formatReading(*v)
}
