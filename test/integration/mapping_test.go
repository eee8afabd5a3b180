// Package integration exercises the triage pipeline end to end over the real
// classifier artifacts.
package integration

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/drfirst/go-triage/internal/classifier"
	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/fhir/mapper"
	"github.com/drfirst/go-triage/internal/triage"
	"github.com/drfirst/go-triage/pkg/idempotency"
)

func loadEngine(t *testing.T) *triage.Engine {
	t.Helper()
	set, err := classifier.LoadSet("../../models", nil)
	if err != nil {
		t.Fatalf("load classifiers: %v", err)
	}
	engine, err := set.Engine(nil)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return engine
}

func TestFHIRBundleToRiskAssessment(t *testing.T) {
	data, err := os.ReadFile("../fixtures/triage_bundle_pneumonia.json")
	if err != nil {
		t.Skipf("fixture not found: %v", err)
	}

	var bundle fhir.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	mapped, err := mapper.NewIntakeMapper().MapBundle(&bundle)
	if err != nil {
		t.Fatalf("mapping failed: %v", err)
	}

	// Verify mapping
	if mapped.Intake.Age != 70 {
		t.Errorf("age = %d, want 70", mapped.Intake.Age)
	}
	if mapped.PatientHash == "" {
		t.Error("expected patient hash")
	}
	temp := mapped.Intake.Vitals.Temperature
	if temp == nil || math.Abs(*temp-101.3) > 0.01 {
		t.Errorf("temperature = %v, want 101.3 F", temp)
	}

	engine := loadEngine(t)
	a, err := engine.Assess(context.Background(), &mapped.Intake)
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}

	if a.PriorityScore < 0 || a.PriorityScore > 100 {
		t.Errorf("priority score %d out of range", a.PriorityScore)
	}
	if a.TriageLevel < 1 || a.TriageLevel > 5 {
		t.Errorf("triage level %d out of range", a.TriageLevel)
	}
	if len(a.TopConditions) == 0 || len(a.TopConditions) > 3 {
		t.Errorf("top conditions = %d, want 1..3", len(a.TopConditions))
	}
	if a.Department != triage.RouteDepartment(a.PredictedCondition) {
		t.Errorf("department %q does not match routing of %q", a.Department, a.PredictedCondition)
	}

	ra := mapper.ToRiskAssessment(a, fhir.Reference{Reference: "Patient/" + mapped.PatientID}, "P-TEST", *bundle.Timestamp)
	if ra.ResourceType != "RiskAssessment" {
		t.Errorf("resourceType = %q", ra.ResourceType)
	}
	if len(ra.Prediction) != len(a.TopConditions) {
		t.Errorf("predictions = %d, want %d", len(ra.Prediction), len(a.TopConditions))
	}

	out, err := json.Marshal(ra)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	t.Logf("RiskAssessment: %d bytes, risk %s, department %s", len(out), a.RiskLevel, a.Department)
}

func TestCriticalVitalsEscalate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	engine := loadEngine(t)

	critical := &triage.IntakeRecord{
		Age:    78,
		Gender: "female",
		Vitals: triage.Vitals{
			HeartRate: f(140), SystolicBP: f(78), DiastolicBP: f(40),
			Temperature: f(104), OxygenSaturation: f(84), RespiratoryRate: f(34),
		},
		Symptoms: []string{"chest pain", "confusion"},
	}
	stable := &triage.IntakeRecord{
		Age:    30,
		Gender: "male",
		Vitals: triage.Vitals{
			HeartRate: f(72), SystolicBP: f(118), DiastolicBP: f(76),
			Temperature: f(98.6), OxygenSaturation: f(99), RespiratoryRate: f(14),
		},
		Symptoms: []string{"skin rash"},
	}

	hi, err := engine.Assess(context.Background(), critical)
	if err != nil {
		t.Fatal(err)
	}
	lo, err := engine.Assess(context.Background(), stable)
	if err != nil {
		t.Fatal(err)
	}
	if hi.PriorityScore <= lo.PriorityScore {
		t.Errorf("critical priority %d should exceed stable %d", hi.PriorityScore, lo.PriorityScore)
	}
	if len(hi.ContributingFactors) == 0 {
		t.Error("critical vitals should produce contributing factors")
	}
}

func TestIdempotencyKeyGeneration(t *testing.T) {
	ts := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)

	key1 := idempotency.GenerateKey("kiosk", "P-A1B2", ts)
	key2 := idempotency.GenerateKey("KIOSK", "p-a1b2", ts)
	key3 := idempotency.GenerateKey("kiosk", "P-A1B2", ts.Add(30*time.Second))
	key4 := idempotency.GenerateKey("kiosk", "P-ZZZZ", ts)

	if key1 != key2 {
		t.Error("source and code should be case insensitive")
	}
	if key1 != key3 {
		t.Error("keys within same minute should match")
	}
	if key1 == key4 {
		t.Error("different patient should produce different key")
	}
}
