package triage

import "testing"

func TestEstimateLengthOfStay(t *testing.T) {
	t.Parallel()

	severe := Vitals{
		HeartRate:        Float(110),
		SystolicBP:       Float(150),
		DiastolicBP:      Float(95),
		Temperature:      Float(101.5),
		OxygenSaturation: Float(92),
	}

	tests := []struct {
		name      string
		risk      RiskLevel
		condition string
		age       int
		vitals    Vitals
		days      int
		conf      float64
	}{
		{"severe pneumonia", RiskHigh, "Pneumonia", 70, severe, 15, 0.6},
		{"low risk no vitals", RiskLow, "Migraine", 30, Vitals{}, 1, 1.0},
		{"cardiac medium", RiskMedium, "Heart failure", 45, Vitals{}, 6, 1.0},
		{"viral infection", RiskMedium, "Viral pharyngitis", 45, Vitals{}, 4, 1.0},
		{"minor floors at one", RiskLow, "Contact dermatitis", 30, Vitals{}, 1, 1.0},
		{"minor reduces medium", RiskMedium, "Skin rash", 30, Vitals{}, 2, 1.0},
		{"age adds decades", RiskLow, "", 85, Vitals{}, 3, 1.0},
		{"unknown risk uses low base", RiskLevel("unknown"), "", 30, Vitals{}, 1, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EstimateLengthOfStay(tt.risk, tt.condition, tt.age, tt.vitals)
			if got.Days != tt.days {
				t.Errorf("days = %d, want %d", got.Days, tt.days)
			}
			if got.Confidence != tt.conf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.conf)
			}
		})
	}
}

func TestEstimateLengthOfStayTruncatesReadings(t *testing.T) {
	t.Parallel()

	// 100.9 bpm truncates to 100 which is in range
	got := EstimateLengthOfStay(RiskLow, "", 30, Vitals{HeartRate: Float(100.9)})
	if got.Days != 1 || got.Confidence != 1.0 {
		t.Errorf("got %+v, want 1 day at full confidence", got)
	}

	// 94.9% truncates to 94 which is low
	got = EstimateLengthOfStay(RiskLow, "", 30, Vitals{OxygenSaturation: Float(94.9)})
	if got.Days != 3 || got.Confidence != 0.8 {
		t.Errorf("got %+v, want 3 days at 0.8", got)
	}
}

func TestEstimateLengthOfStayMonotonicInAge(t *testing.T) {
	t.Parallel()

	vitals := []Vitals{
		{},
		{HeartRate: Float(110), SystolicBP: Float(150), OxygenSaturation: Float(92), Temperature: Float(101.5)},
	}
	for _, risk := range []RiskLevel{RiskLow, RiskMedium, RiskHigh} {
		for _, v := range vitals {
			prev := EstimateLengthOfStay(risk, "Pneumonia", 60, v).Days
			for age := 61; age <= 150; age++ {
				days := EstimateLengthOfStay(risk, "Pneumonia", age, v).Days
				if days < prev {
					t.Fatalf("%s: age %d gives %d days, age %d gave %d", risk, age, days, age-1, prev)
				}
				prev = days
			}
		}
	}
}

func TestEstimateLengthOfStayMonotonicInRiskTier(t *testing.T) {
	t.Parallel()

	conditions := map[string]string{
		"cardiac":     "Heart attack",
		"respiratory": "Asthma",
		"infection":   "Bacterial infection",
		"minor":       "Skin rash",
		"none":        "Migraine",
	}
	for category, condition := range conditions {
		for _, age := range []int{30, 75} {
			low := EstimateLengthOfStay(RiskLow, condition, age, Vitals{}).Days
			medium := EstimateLengthOfStay(RiskMedium, condition, age, Vitals{}).Days
			high := EstimateLengthOfStay(RiskHigh, condition, age, Vitals{}).Days
			if low > medium || medium > high {
				t.Errorf("%s at age %d: low=%d medium=%d high=%d", category, age, low, medium, high)
			}
		}
	}
}
