// Package encounter implements the patient encounter aggregate and its
// domain events.
package encounter

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/drfirst/go-triage/internal/triage"
)

// AggregateType is stored with every encounter event and outbox row
const AggregateType = "Encounter"

// EventType represents the type of domain event
type EventType string

const (
	EventPatientRegistered  EventType = "PatientRegistered"
	EventAssessmentRecorded EventType = "AssessmentRecorded"
	EventStatusChanged      EventType = "StatusChanged"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	PatientHash   string          `json:"patient_hash,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent creates a new event
func NewEvent(aggregateID string, eventType EventType, data any) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: AggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// PatientRegisteredData contains patient demographics at arrival
type PatientRegisteredData struct {
	PatientCode  string    `json:"patient_code"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Gender       string    `json:"gender"`
	PatientHash  string    `json:"patient_hash,omitempty"`
	Source       string    `json:"source"`
	RegisteredAt time.Time `json:"registered_at"`
}

// AssessmentRecordedData is a snapshot of the intake and its assessment
type AssessmentRecordedData struct {
	PatientCode string              `json:"patient_code"`
	Intake      triage.IntakeRecord `json:"intake"`
	Assessment  triage.Assessment   `json:"assessment"`
	AssessedAt  time.Time           `json:"assessed_at"`
}

// StatusChangedData records a status transition
type StatusChangedData struct {
	PatientCode string    `json:"patient_code"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Reason      string    `json:"reason,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

// WithCorrelation sets the correlation ID, usually the request ID
func (e *Event) WithCorrelation(id string) *Event {
	e.CorrelationID = id
	return e
}
