package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/triage"
)

// qualitativeRisk maps risk tiers to the HL7 risk-probability code system
var qualitativeRisk = map[triage.RiskLevel]fhir.Coding{
	triage.RiskLow:    {System: fhir.SystemRiskProbability, Code: "low", Display: "Low likelihood"},
	triage.RiskMedium: {System: fhir.SystemRiskProbability, Code: "moderate", Display: "Moderate likelihood"},
	triage.RiskHigh:   {System: fhir.SystemRiskProbability, Code: "high", Display: "High likelihood"},
}

// ToRiskAssessment renders an assessment as a FHIR RiskAssessment. Each top
// condition becomes a prediction; scalar outputs without a core element are
// carried as extensions.
func ToRiskAssessment(a *triage.Assessment, subject fhir.Reference, patientCode string, at time.Time) *fhir.RiskAssessment {
	risk := qualitativeRisk[a.RiskLevel]
	occurred := at.UTC()

	ra := &fhir.RiskAssessment{
		ResourceType: "RiskAssessment",
		ID:           uuid.New().String(),
		Status:       fhir.StatusFinal,
		Method: &fhir.CodeableConcept{
			Text: "Triage decision engine",
		},
		Code: &fhir.CodeableConcept{
			Text: "Emergency triage",
		},
		Subject:            subject,
		OccurrenceDateTime: &occurred,
		Mitigation:         fmt.Sprintf("Route to %s", a.Department),
	}

	if patientCode != "" {
		ra.Identifier = []fhir.Identifier{{System: fhir.SystemTriagePatientCode, Value: patientCode}}
	}

	for i, c := range a.TopConditions {
		p := c.Probability / 100
		pred := fhir.RiskAssessmentPrediction{
			Outcome:            &fhir.CodeableConcept{Text: c.Condition},
			ProbabilityDecimal: &p,
		}
		if i == 0 {
			pred.QualitativeRisk = &fhir.CodeableConcept{Coding: []fhir.Coding{risk}}
			pred.Rationale = fmt.Sprintf("condition confidence %d%%", a.ConditionConfidence)
		}
		ra.Prediction = append(ra.Prediction, pred)
	}

	if len(a.ContributingFactors) > 0 {
		ra.Note = []fhir.Annotation{{Time: occurred, Text: factorNote(a.ContributingFactors)}}
	}

	priority := a.PriorityScore
	level := a.TriageLevel
	waiting := a.WaitingTimeMinutes
	los := a.EstimatedLOSDays
	confidence := a.Confidence
	losConfidence := a.LOSConfidence
	ra.Extension = []fhir.Extension{
		{URL: fhir.ExtPriorityScore, ValueInteger: &priority},
		{URL: fhir.ExtTriageLevel, ValueInteger: &level},
		{URL: fhir.ExtDepartment, ValueCoding: &fhir.Coding{System: fhir.SystemTriageDepartment, Code: a.Department, Display: a.Department}},
		{URL: fhir.ExtWaitingMinutes, ValueInteger: &waiting},
		{URL: fhir.ExtLengthOfStay, ValueInteger: &los},
		{URL: fhir.ExtLengthOfStayConfidence, ValueDecimal: &losConfidence},
		{URL: fhir.ExtConfidence, ValueInteger: &confidence},
	}

	return ra
}

// factorNote lists contributing factors one per line, most significant first
func factorNote(factors []triage.ContributingFactor) string {
	var b strings.Builder
	b.WriteString("Contributing factors:")
	for _, f := range factors {
		direction := "concerning"
		if f.IsPositive {
			direction = "reassuring"
		}
		fmt.Fprintf(&b, "\n- %s: %s (impact %d, %s)", f.Name, f.Value, f.Impact, direction)
	}
	return b.String()
}
