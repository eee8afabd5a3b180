package encounter

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/drfirst/go-triage/internal/triage"
)

var (
	// ErrNotFound is returned when no events exist for a patient code
	ErrNotFound = errors.New("encounter not found")
	// ErrInvalidTransition is returned for status changes the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyRegistered is returned when registering twice
	ErrAlreadyRegistered = errors.New("patient already registered")
)

// Status represents the encounter status
type Status string

const (
	StatusNew         Status = ""
	StatusRegistered  Status = "registered"
	StatusWaiting     Status = "waiting"
	StatusAttended    Status = "attended"
	StatusDischarged  Status = "discharged"
	StatusTransferred Status = "transferred"
)

// transitions lists the statuses reachable by an explicit status change
var transitions = map[Status][]Status{
	StatusWaiting:  {StatusAttended, StatusTransferred},
	StatusAttended: {StatusDischarged, StatusTransferred},
}

// ParseStatus validates a client supplied status
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusWaiting, StatusAttended, StatusDischarged, StatusTransferred:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// CanTransition reports whether from may move to to
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Aggregate represents the encounter aggregate root, keyed by patient code
type Aggregate struct {
	code        string
	version     int
	status      Status
	name        string
	age         int
	gender      string
	patientHash string
	source      string
	intake      *triage.IntakeRecord
	assessment  *triage.Assessment
	arrivedAt   time.Time
	assessedAt  time.Time
	updatedAt   time.Time
	changes     []*Event
}

// NewAggregate creates a new encounter aggregate
func NewAggregate(code string) *Aggregate {
	return &Aggregate{
		code:    code,
		status:  StatusNew,
		changes: make([]*Event, 0),
	}
}

// ID returns the patient code
func (a *Aggregate) ID() string { return a.code }

// Version returns the current version
func (a *Aggregate) Version() int { return a.version }

// Status returns the current status
func (a *Aggregate) Status() Status { return a.status }

// Name returns the patient display name
func (a *Aggregate) Name() string { return a.name }

// Age returns the age at registration
func (a *Aggregate) Age() int { return a.age }

// Gender returns the recorded gender
func (a *Aggregate) Gender() string { return a.gender }

// PatientHash returns the identity hash, empty for anonymous intakes
func (a *Aggregate) PatientHash() string { return a.patientHash }

// Intake returns the last assessed intake, or nil
func (a *Aggregate) Intake() *triage.IntakeRecord { return a.intake }

// Assessment returns the last assessment, or nil
func (a *Aggregate) Assessment() *triage.Assessment { return a.assessment }

// ArrivedAt returns the registration time
func (a *Aggregate) ArrivedAt() time.Time { return a.arrivedAt }

// AssessedAt returns the time of the last assessment
func (a *Aggregate) AssessedAt() time.Time { return a.assessedAt }

// UpdatedAt returns the time of the last applied event
func (a *Aggregate) UpdatedAt() time.Time { return a.updatedAt }

// Changes returns uncommitted events
func (a *Aggregate) Changes() []*Event { return a.changes }

// ClearChanges clears uncommitted events
func (a *Aggregate) ClearChanges() { a.changes = make([]*Event, 0) }

// Register records the patient's arrival
func (a *Aggregate) Register(data *PatientRegisteredData) error {
	if a.status != StatusNew {
		return ErrAlreadyRegistered
	}
	data.PatientCode = a.code
	if data.RegisteredAt.IsZero() {
		data.RegisteredAt = time.Now().UTC()
	}

	event, err := NewEvent(a.code, EventPatientRegistered, data)
	if err != nil {
		return err
	}
	event.PatientHash = data.PatientHash

	return a.record(event)
}

// RecordAssessment stores an assessment and places the patient in the
// waiting state. Reassessment is allowed while the patient is still waiting.
func (a *Aggregate) RecordAssessment(intake triage.IntakeRecord, assessment triage.Assessment, at time.Time) error {
	if a.status != StatusRegistered && a.status != StatusWaiting {
		return fmt.Errorf("%w: cannot assess a %s patient", ErrInvalidTransition, a.statusLabel())
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	event, err := NewEvent(a.code, EventAssessmentRecorded, &AssessmentRecordedData{
		PatientCode: a.code,
		Intake:      intake,
		Assessment:  assessment,
		AssessedAt:  at,
	})
	if err != nil {
		return err
	}
	event.PatientHash = a.patientHash

	return a.record(event)
}

// ChangeStatus moves the encounter along its lifecycle
func (a *Aggregate) ChangeStatus(to Status, reason string) error {
	if !CanTransition(a.status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.statusLabel(), to)
	}

	event, err := NewEvent(a.code, EventStatusChanged, &StatusChangedData{
		PatientCode: a.code,
		From:        a.status,
		To:          to,
		Reason:      reason,
		ChangedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	event.PatientHash = a.patientHash

	return a.record(event)
}

func (a *Aggregate) record(event *Event) error {
	if err := a.apply(event); err != nil {
		return err
	}
	event.Version = a.version
	a.changes = append(a.changes, event)
	return nil
}

// apply applies an event to update state
func (a *Aggregate) apply(event *Event) error {
	switch event.EventType {
	case EventPatientRegistered:
		var data PatientRegisteredData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		a.status = StatusRegistered
		a.name = data.Name
		a.age = data.Age
		a.gender = data.Gender
		a.patientHash = data.PatientHash
		a.source = data.Source
		a.arrivedAt = data.RegisteredAt

	case EventAssessmentRecorded:
		var data AssessmentRecordedData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		a.status = StatusWaiting
		a.intake = &data.Intake
		a.assessment = &data.Assessment
		a.assessedAt = data.AssessedAt

	case EventStatusChanged:
		var data StatusChangedData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		a.status = data.To

	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}

	a.version++
	a.updatedAt = event.Timestamp
	return nil
}

// LoadFromHistory rebuilds state from events
func (a *Aggregate) LoadFromHistory(events []*Event) error {
	for _, event := range events {
		if err := a.apply(event); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregate) statusLabel() string {
	if a.status == StatusNew {
		return "unregistered"
	}
	return string(a.status)
}
