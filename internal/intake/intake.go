// Package intake turns submitted intakes into recorded, queued assessments.
// Shared by the HTTP API and the broker worker.
package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drfirst/go-triage/internal/triage"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid intake")

// MaxAge bounds accepted ages
const MaxAge = 150

// Submission is one intake ready to be assessed
type Submission struct {
	PatientCode   string
	Name          string
	PatientHash   string
	Source        string
	CorrelationID string
	Intake        triage.IntakeRecord
	SubmittedAt   time.Time
}

// Message is the broker payload on the intake topic. Vitals arrive as
// device strings, blood pressure as "systolic/diastolic".
type Message struct {
	PatientCode string           `json:"patient_code,omitempty"`
	Name        string           `json:"name"`
	Age         int              `json:"age"`
	Gender      string           `json:"gender"`
	Vitals      triage.RawVitals `json:"vitals"`
	Symptoms    []string         `json:"symptoms"`
	Conditions  []string         `json:"conditions"`
	Notes       string           `json:"notes,omitempty"`
	Source      string           `json:"source"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// Submission validates the message and converts it
func (m Message) Submission() (Submission, error) {
	in := triage.IntakeRecord{
		Age:        m.Age,
		Gender:     m.Gender,
		Vitals:     triage.ParseVitals(m.Vitals),
		Symptoms:   m.Symptoms,
		Conditions: m.Conditions,
		Notes:      m.Notes,
	}
	if err := Validate(&in); err != nil {
		return Submission{}, err
	}
	if strings.TrimSpace(m.Name) == "" {
		return Submission{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if m.SubmittedAt.IsZero() {
		return Submission{}, fmt.Errorf("%w: submitted_at is required", ErrInvalid)
	}

	source := m.Source
	if source == "" {
		source = "broker"
	}
	return Submission{
		PatientCode: m.PatientCode,
		Name:        strings.TrimSpace(m.Name),
		Source:      source,
		Intake:      in,
		SubmittedAt: m.SubmittedAt,
	}, nil
}

// Validate checks the intake and normalizes its lists in place: blank
// entries are dropped and surrounding whitespace trimmed.
func Validate(in *triage.IntakeRecord) error {
	if in.Age < 0 || in.Age > MaxAge {
		return fmt.Errorf("%w: age must be between 0 and %d", ErrInvalid, MaxAge)
	}
	in.Gender = strings.TrimSpace(in.Gender)
	in.Symptoms = compact(in.Symptoms)
	in.Conditions = compact(in.Conditions)

	for _, v := range []*float64{
		in.Vitals.HeartRate, in.Vitals.SystolicBP, in.Vitals.DiastolicBP,
		in.Vitals.Temperature, in.Vitals.OxygenSaturation, in.Vitals.RespiratoryRate,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: vital readings cannot be negative", ErrInvalid)
		}
	}
	return nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
