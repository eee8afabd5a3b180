package triage

import "testing"

func TestParseBloodPressure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		sys, dia float64
		ok       bool
	}{
		{"120/80", 120, 80, true},
		{" 150 / 95 ", 150, 95, true},
		{"130", 130, 0, true},
		{"130/abc", 130, 0, true},
		{"120.0/80", 120, 80, true},
		{"142.5/91.5", 142.5, 91.5, true},
		{"/80", 0, 0, false},
		{"high", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		sys, dia, ok := ParseBloodPressure(tt.in)
		if sys != tt.sys || dia != tt.dia || ok != tt.ok {
			t.Errorf("ParseBloodPressure(%q) = %v, %v, %v; want %v, %v, %v",
				tt.in, sys, dia, ok, tt.sys, tt.dia, tt.ok)
		}
	}
}

func TestParseVitals(t *testing.T) {
	t.Parallel()

	v := ParseVitals(RawVitals{
		HeartRate:        "88",
		BloodPressure:    "118/76",
		Temperature:      "not-a-number",
		OxygenSaturation: "97.5",
	})

	if v.HeartRate == nil || *v.HeartRate != 88 {
		t.Errorf("heart rate = %v", v.HeartRate)
	}
	if v.SystolicBP == nil || *v.SystolicBP != 118 || v.DiastolicBP == nil || *v.DiastolicBP != 76 {
		t.Errorf("blood pressure = %v/%v", v.SystolicBP, v.DiastolicBP)
	}
	if v.Temperature != nil {
		t.Errorf("unparsable temperature should be absent, got %v", *v.Temperature)
	}
	if v.OxygenSaturation == nil || *v.OxygenSaturation != 97.5 {
		t.Errorf("spo2 = %v", v.OxygenSaturation)
	}
	if v.RespiratoryRate != nil {
		t.Error("empty respiratory rate should be absent")
	}
}

func TestDisplayVitals(t *testing.T) {
	t.Parallel()

	got := DisplayVitals(Vitals{HeartRate: Float(72), SystolicBP: Float(120)})
	if got["heartRate"] != "72" {
		t.Errorf("heartRate = %q", got["heartRate"])
	}
	if got["bloodPressure"] != "120/N/A" {
		t.Errorf("bloodPressure = %q", got["bloodPressure"])
	}
	if got["temperature"] != "N/A" {
		t.Errorf("temperature = %q", got["temperature"])
	}
}
