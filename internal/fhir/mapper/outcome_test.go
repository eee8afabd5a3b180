package mapper

import (
	"strings"
	"testing"
	"time"

	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/triage"
)

func TestToRiskAssessment(t *testing.T) {
	t.Parallel()

	a := &triage.Assessment{
		RiskLevel:           triage.RiskHigh,
		PriorityScore:       82,
		TriageLevel:         2,
		Confidence:          56,
		ConditionConfidence: 36,
		PredictedCondition:  "Pneumonia",
		TopConditions: []triage.ConditionCandidate{
			{Condition: "Pneumonia", Probability: 80},
			{Condition: "Common cold", Probability: 10},
			{Condition: "Heart attack", Probability: 10},
		},
		Department: "Pulmonology",
		ContributingFactors: []triage.ContributingFactor{
			{Name: "Age Factor", Value: "70 years", Impact: 35},
			{Name: "Heart Rate", Value: "80 bpm", Impact: 15, IsPositive: true},
		},
		WaitingTimeMinutes: 5,
		EstimatedLOSDays:   15,
		LOSConfidence:      0.6,
	}
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	ra := ToRiskAssessment(a, fhir.Reference{Reference: "Patient/p1"}, "P-0001", at)

	if ra.ResourceType != "RiskAssessment" || ra.Status != fhir.StatusFinal {
		t.Errorf("resource = %s/%s", ra.ResourceType, ra.Status)
	}
	if ra.ID == "" {
		t.Error("expected id")
	}
	if len(ra.Identifier) != 1 || ra.Identifier[0].Value != "P-0001" {
		t.Errorf("identifier = %+v", ra.Identifier)
	}
	if len(ra.Prediction) != 3 {
		t.Fatalf("predictions = %d, want 3", len(ra.Prediction))
	}
	first := ra.Prediction[0]
	if first.Outcome.Text != "Pneumonia" || *first.ProbabilityDecimal != 0.8 {
		t.Errorf("first prediction = %+v", first)
	}
	if !first.QualitativeRisk.HasCode(fhir.SystemRiskProbability, "high") {
		t.Errorf("qualitative risk = %+v", first.QualitativeRisk)
	}
	if ra.Prediction[1].QualitativeRisk != nil {
		t.Error("only the leading prediction carries qualitative risk")
	}

	if len(ra.Note) != 1 || !strings.Contains(ra.Note[0].Text, "Age Factor: 70 years (impact 35, concerning)") {
		t.Errorf("note = %+v", ra.Note)
	}
	if !strings.Contains(ra.Note[0].Text, "reassuring") {
		t.Error("positive factor should read as reassuring")
	}

	if ext := ra.FindExtension(fhir.ExtPriorityScore); ext == nil || *ext.ValueInteger != 82 {
		t.Errorf("priority extension = %+v", ext)
	}
	if ext := ra.FindExtension(fhir.ExtDepartment); ext == nil || ext.ValueCoding.Code != "Pulmonology" {
		t.Errorf("department extension = %+v", ext)
	}
	if ext := ra.FindExtension(fhir.ExtLengthOfStayConfidence); ext == nil || *ext.ValueDecimal != 0.6 {
		t.Errorf("los confidence extension = %+v", ext)
	}
	if ra.Mitigation != "Route to Pulmonology" {
		t.Errorf("mitigation = %q", ra.Mitigation)
	}
}

func TestToRiskAssessmentMediumIsModerate(t *testing.T) {
	t.Parallel()

	a := &triage.Assessment{
		RiskLevel:     triage.RiskMedium,
		TopConditions: []triage.ConditionCandidate{{Condition: "Migraine", Probability: 100}},
		Department:    "Neurology",
	}
	ra := ToRiskAssessment(a, fhir.Reference{}, "", time.Now())

	if !ra.Prediction[0].QualitativeRisk.HasCode("", "moderate") {
		t.Errorf("qualitative risk = %+v", ra.Prediction[0].QualitativeRisk)
	}
	if ra.Identifier != nil {
		t.Error("no identifier without a patient code")
	}
	if ra.Note != nil {
		t.Error("no note without factors")
	}
}
