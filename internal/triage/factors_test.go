package triage

import "testing"

func TestRankFactors(t *testing.T) {
	t.Parallel()

	v := Vitals{
		HeartRate:        Float(110),
		SystolicBP:       Float(150),
		DiastolicBP:      Float(95),
		Temperature:      Float(101.5),
		OxygenSaturation: Float(92),
	}
	got := RankFactors(v, 70)

	want := []ContributingFactor{
		{Name: "Age Factor", Value: "70 years", Impact: 35, IsPositive: false},
		{Name: "Heart Rate", Value: "110 bpm", Impact: 20, IsPositive: false},
		{Name: "Blood Pressure (Systolic)", Value: "150/95 mmHg", Impact: 17, IsPositive: false},
		{Name: "Oxygen Saturation (SpO2)", Value: "92 %", Impact: 13, IsPositive: false},
		{Name: "Temperature", Value: "101.5 °F", Impact: 12, IsPositive: false},
	}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("factor %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRankFactorsInRangeIsPositive(t *testing.T) {
	t.Parallel()

	got := RankFactors(Vitals{HeartRate: Float(80), RespiratoryRate: Float(16)}, 30)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, f := range got[:2] {
		if !f.IsPositive || f.Impact != 15 {
			t.Errorf("in-range factor %+v, want positive impact 15", f)
		}
	}
	// equal impacts keep insertion order
	if got[0].Name != "Heart Rate" || got[1].Name != "Respiratory Rate" {
		t.Errorf("order = %q, %q", got[0].Name, got[1].Name)
	}
	if got[2].Name != "Age Factor" || got[2].Impact != 6 || !got[2].IsPositive {
		t.Errorf("age factor = %+v", got[2])
	}
}

func TestRankFactorsAgeOnly(t *testing.T) {
	t.Parallel()

	got := RankFactors(Vitals{}, 20)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Impact != 5 {
		t.Errorf("impact = %d, want floor of 5", got[0].Impact)
	}
}

func TestRankFactorsSystolicWithoutDiastolic(t *testing.T) {
	t.Parallel()

	got := RankFactors(Vitals{SystolicBP: Float(85)}, 40)
	for _, f := range got {
		if f.Name == "Blood Pressure (Systolic)" {
			if f.Value != "85 mmHg" {
				t.Errorf("value = %q", f.Value)
			}
			if f.IsPositive {
				t.Error("low systolic should not be positive")
			}
			return
		}
	}
	t.Fatal("systolic factor missing")
}

func TestRankFactorsCapsAtMax(t *testing.T) {
	t.Parallel()

	v := Vitals{
		HeartRate:        Float(130),
		SystolicBP:       Float(180),
		Temperature:      Float(103),
		OxygenSaturation: Float(85),
		RespiratoryRate:  Float(30),
	}
	got := RankFactors(v, 90)
	if len(got) > MaxFactors {
		t.Fatalf("len = %d, want at most %d", len(got), MaxFactors)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Impact > got[i-1].Impact {
			t.Errorf("not sorted by impact at %d: %+v", i, got)
		}
	}
}
