// Package mapper transforms FHIR R5 resources to triage intakes and triage
// assessments back to FHIR RiskAssessments.
package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/triage"
)

// MapError represents a mapping error with context
type MapError struct {
	Field   string
	Code    string
	Message string
	Cause   error
}

func (e *MapError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *MapError) Unwrap() error {
	return e.Cause
}

// IntakeResult is a mapped intake with the patient identity kept apart from
// the clinical record
type IntakeResult struct {
	Intake      triage.IntakeRecord
	PatientName string
	PatientID   string
	MRN         string
	PatientHash string
	AssessedAt  time.Time
}

// IntakeMapper transforms a FHIR Bundle into a triage intake
type IntakeMapper struct {
	// Now supplies the reference time for age when the bundle has no timestamp
	Now func() time.Time
}

// NewIntakeMapper creates a mapper using the wall clock
func NewIntakeMapper() *IntakeMapper {
	return &IntakeMapper{Now: time.Now}
}

// reading is a candidate value for one vital; the most recent wins
type reading struct {
	value float64
	at    time.Time
	set   bool
}

func (r *reading) offer(v float64, at *time.Time) {
	t := time.Time{}
	if at != nil {
		t = *at
	}
	if r.set && t.Before(r.at) {
		return
	}
	r.value, r.at, r.set = v, t, true
}

func (r *reading) ptr() *float64 {
	if !r.set {
		return nil
	}
	v := r.value
	return &v
}

// MapBundle transforms a bundle holding one Patient, vital-sign and survey
// Observations and Conditions into an intake. Absent or unusable
// observations leave the corresponding vital absent.
func (m *IntakeMapper) MapBundle(bundle *fhir.Bundle) (*IntakeResult, error) {
	if bundle == nil {
		return nil, &MapError{Field: "Bundle", Code: "NULL_INPUT", Message: "bundle is required"}
	}

	var (
		patient    *fhir.Patient
		hr, sys    reading
		dia, temp  reading
		spo2, rr   reading
		symptoms   []string
		conditions []string
		notes      []string
		seen       = make(map[string]bool)
	)

	for i, entry := range bundle.Entry {
		field := fmt.Sprintf("Bundle.entry[%d]", i)

		switch entry.ResourceType() {
		case "Patient":
			if patient != nil {
				return nil, &MapError{Field: field, Code: "MULTIPLE_PATIENTS", Message: "bundle must contain exactly one patient"}
			}
			var p fhir.Patient
			if err := json.Unmarshal(entry.Resource, &p); err != nil {
				return nil, &MapError{Field: field, Code: "INVALID_RESOURCE", Message: "invalid patient", Cause: err}
			}
			patient = &p

		case "Observation":
			var obs fhir.Observation
			if err := json.Unmarshal(entry.Resource, &obs); err != nil {
				return nil, &MapError{Field: field, Code: "INVALID_RESOURCE", Message: "invalid observation", Cause: err}
			}
			if !obs.IsUsable() {
				continue
			}
			if obs.HasCategory(fhir.ObservationSurvey) {
				if name := obs.Code.Display(); name != "" && !seen[name] {
					seen[name] = true
					symptoms = append(symptoms, name)
				}
				for _, n := range obs.Note {
					if n.Text != "" {
						notes = append(notes, n.Text)
					}
				}
				continue
			}
			mapVital(&obs, &hr, &sys, &dia, &temp, &spo2, &rr)

		case "Condition":
			var c fhir.Condition
			if err := json.Unmarshal(entry.Resource, &c); err != nil {
				return nil, &MapError{Field: field, Code: "INVALID_RESOURCE", Message: "invalid condition", Cause: err}
			}
			if !c.IsActive() {
				continue
			}
			if name := c.Code.Display(); name != "" {
				conditions = append(conditions, name)
			}
		}
	}

	if patient == nil {
		return nil, &MapError{Field: "Bundle.entry", Code: "MISSING_PATIENT", Message: "bundle must contain a patient"}
	}

	at := m.now()
	if bundle.Timestamp != nil {
		at = *bundle.Timestamp
	}
	age, ok := patient.AgeAt(at)
	if !ok {
		return nil, &MapError{Field: "Patient.birthDate", Code: "MISSING_FIELD", Message: "valid birth date is required"}
	}

	return &IntakeResult{
		Intake: triage.IntakeRecord{
			Age:    age,
			Gender: patient.Gender,
			Vitals: triage.Vitals{
				HeartRate:        hr.ptr(),
				SystolicBP:       sys.ptr(),
				DiastolicBP:      dia.ptr(),
				Temperature:      temp.ptr(),
				OxygenSaturation: spo2.ptr(),
				RespiratoryRate:  rr.ptr(),
			},
			Symptoms:   symptoms,
			Conditions: conditions,
			Notes:      strings.Join(notes, "\n"),
		},
		PatientName: patient.GetFullName(),
		PatientID:   patient.ID,
		MRN:         patient.GetMRN(),
		PatientHash: calculatePatientHash(patient),
		AssessedAt:  at,
	}, nil
}

func (m *IntakeMapper) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func mapVital(obs *fhir.Observation, hr, sys, dia, temp, spo2, rr *reading) {
	at := obs.EffectiveDateTime

	switch {
	case obs.IsLOINC(fhir.LOINCBloodPressure):
		if v, ok := obs.ComponentValue(fhir.LOINCSystolicBP); ok {
			sys.offer(v, at)
		}
		if v, ok := obs.ComponentValue(fhir.LOINCDiastolicBP); ok {
			dia.offer(v, at)
		}
		return
	}

	v, unit, ok := obs.Value()
	if !ok {
		return
	}

	switch {
	case obs.IsLOINC(fhir.LOINCHeartRate):
		hr.offer(v, at)
	case obs.IsLOINC(fhir.LOINCSystolicBP):
		sys.offer(v, at)
	case obs.IsLOINC(fhir.LOINCDiastolicBP):
		dia.offer(v, at)
	case obs.IsLOINC(fhir.LOINCBodyTemperature):
		temp.offer(toFahrenheit(v, unit), at)
	case obs.IsLOINC(fhir.LOINCOxygenSaturation, fhir.LOINCPulseOximetry):
		spo2.offer(v, at)
	case obs.IsLOINC(fhir.LOINCRespiratoryRate):
		rr.offer(v, at)
	}
}

// toFahrenheit converts a UCUM temperature to °F. Unknown units are assumed
// to be Fahrenheit already.
func toFahrenheit(v float64, unit string) float64 {
	switch unit {
	case "Cel", "C", "°C":
		return v*9/5 + 32
	default:
		return v
	}
}

// calculatePatientHash creates a SHA-256 hash of patient identifiers for audit
func calculatePatientHash(patient *fhir.Patient) string {
	var parts []string

	if mrn := patient.GetMRN(); mrn != "" {
		parts = append(parts, mrn)
	}
	if name := patient.GetOfficialName(); name != nil {
		parts = append(parts, name.Family, strings.Join(name.Given, " "))
	}
	if patient.BirthDate != "" {
		parts = append(parts, patient.BirthDate)
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
