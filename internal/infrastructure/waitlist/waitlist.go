// Package waitlist keeps the live waiting room ordered by priority score.
// Equal scores are served in arrival order.
package waitlist

import (
	"context"
	"time"

	"github.com/drfirst/go-triage/internal/triage"
)

// DefaultLimit is used by Top when n is not positive
const DefaultLimit = 50

// Entry is the display snapshot of one waiting patient
type Entry struct {
	PatientCode        string    `json:"patientCode" redis:"patient_code"`
	Name               string    `json:"name" redis:"name"`
	Age                int       `json:"age" redis:"age"`
	Gender             string    `json:"gender" redis:"gender"`
	RiskLevel          string    `json:"riskLevel" redis:"risk_level"`
	PriorityScore      int       `json:"priorityScore" redis:"priority_score"`
	TriageLevel        int       `json:"triageLevel" redis:"triage_level"`
	PredictedCondition string    `json:"predictedCondition" redis:"predicted_condition"`
	Department         string    `json:"department" redis:"department"`
	WaitingTimeMinutes int       `json:"waitingTimeMinutes" redis:"waiting_time_minutes"`
	ArrivedAt          time.Time `json:"arrivedAt" redis:"-"`
	ArrivedAtMillis    int64     `json:"-" redis:"arrived_at_ms"`
}

// NewEntry builds a waitlist entry from a completed assessment
func NewEntry(code, name string, in *triage.IntakeRecord, a *triage.Assessment, arrived time.Time) Entry {
	return Entry{
		PatientCode:        code,
		Name:               name,
		Age:                in.Age,
		Gender:             in.Gender,
		RiskLevel:          string(a.RiskLevel),
		PriorityScore:      a.PriorityScore,
		TriageLevel:        a.TriageLevel,
		PredictedCondition: a.PredictedCondition,
		Department:         a.Department,
		WaitingTimeMinutes: a.WaitingTimeMinutes,
		ArrivedAt:          arrived.UTC(),
		ArrivedAtMillis:    arrived.UnixMilli(),
	}
}

// Waitlist is the queue used by the API
type Waitlist interface {
	Add(ctx context.Context, e Entry) error
	Remove(ctx context.Context, code string) error
	Top(ctx context.Context, n int) ([]Entry, error)
	Len(ctx context.Context) (int64, error)
}

// arrivalScale keeps arrival milliseconds below one priority point
const arrivalScale = 1e13

// Score orders entries: higher priority first, then earlier arrival.
// Scores stay exact in a float64 for priorities up to 100.
func Score(priority int, arrived time.Time) float64 {
	return float64(priority)*arrivalScale + (arrivalScale - float64(arrived.UnixMilli()))
}
