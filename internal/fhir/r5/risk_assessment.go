package r5

import "time"

// RiskAssessment represents a FHIR R5 RiskAssessment resource.
type RiskAssessment struct {
	ResourceType       string                     `json:"resourceType"`
	ID                 string                     `json:"id,omitempty"`
	Meta               *Meta                      `json:"meta,omitempty"`
	Identifier         []Identifier               `json:"identifier,omitempty"`
	Status             string                     `json:"status"`
	Method             *CodeableConcept           `json:"method,omitempty"`
	Code               *CodeableConcept           `json:"code,omitempty"`
	Subject            Reference                  `json:"subject"`
	OccurrenceDateTime *time.Time                 `json:"occurrenceDateTime,omitempty"`
	Basis              []Reference                `json:"basis,omitempty"`
	Prediction         []RiskAssessmentPrediction `json:"prediction,omitempty"`
	Mitigation         string                     `json:"mitigation,omitempty"`
	Note               []Annotation               `json:"note,omitempty"`
	Extension          []Extension                `json:"extension,omitempty"`
}

// RiskAssessmentPrediction is one predicted outcome with its probability.
type RiskAssessmentPrediction struct {
	Outcome            *CodeableConcept `json:"outcome,omitempty"`
	ProbabilityDecimal *float64         `json:"probabilityDecimal,omitempty"`
	QualitativeRisk    *CodeableConcept `json:"qualitativeRisk,omitempty"`
	RelativeRisk       *float64         `json:"relativeRisk,omitempty"`
	Rationale          string           `json:"rationale,omitempty"`
}

// Extension carries values the core resource has no element for.
type Extension struct {
	URL          string   `json:"url"`
	ValueString  string   `json:"valueString,omitempty"`
	ValueInteger *int     `json:"valueInteger,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
	ValueCoding  *Coding  `json:"valueCoding,omitempty"`
}

// Extension URLs for triage outputs without a RiskAssessment element
const (
	ExtPriorityScore          = "http://hospital.example.org/fhir/StructureDefinition/triage-priority-score"
	ExtTriageLevel            = "http://hospital.example.org/fhir/StructureDefinition/triage-level"
	ExtDepartment             = "http://hospital.example.org/fhir/StructureDefinition/triage-department"
	ExtWaitingMinutes         = "http://hospital.example.org/fhir/StructureDefinition/triage-waiting-minutes"
	ExtLengthOfStay           = "http://hospital.example.org/fhir/StructureDefinition/triage-length-of-stay"
	ExtLengthOfStayConfidence = "http://hospital.example.org/fhir/StructureDefinition/triage-length-of-stay-confidence"
	ExtConfidence             = "http://hospital.example.org/fhir/StructureDefinition/triage-confidence"
)

// FindExtension returns the first extension with the given URL.
func (r *RiskAssessment) FindExtension(url string) *Extension {
	for i := range r.Extension {
		if r.Extension[i].URL == url {
			return &r.Extension[i]
		}
	}
	return nil
}
