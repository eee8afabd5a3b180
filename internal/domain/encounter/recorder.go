package encounter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/triage"
	"github.com/drfirst/go-triage/pkg/circuitbreaker"
)

// NewPatientCode returns a short display code such as "P-3FA9"
func NewPatientCode() string {
	return "P-" + strings.ToUpper(uuid.New().String()[:4])
}

// RecordRequest is one completed triage to persist
type RecordRequest struct {
	PatientCode   string
	Name          string
	PatientHash   string
	Source        string
	CorrelationID string
	Intake        triage.IntakeRecord
	Assessment    triage.Assessment
	AssessedAt    time.Time
}

// Recorder persists completed triages through a circuit breaker. Failures
// are logged and reported to the failure hook, never to the caller of Go.
type Recorder struct {
	store   Store
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	timeout time.Duration

	// OnFailure is called for every failed recording
	OnFailure func(err error)
}

// NewRecorder creates a recorder
func NewRecorder(store Store, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:   store,
		breaker: breaker,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Record registers the patient, records the assessment and saves both
// events. Reassessing a known patient code appends to its history.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) error {
	run := func(ctx context.Context) error {
		agg, err := r.loadOrNew(ctx, req)
		if err != nil {
			return err
		}
		if err := agg.RecordAssessment(req.Intake, req.Assessment, req.AssessedAt); err != nil {
			return err
		}
		for _, e := range agg.Changes() {
			e.WithCorrelation(req.CorrelationID)
		}
		return r.store.Save(ctx, agg)
	}

	var err error
	if r.breaker != nil {
		err = r.breaker.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return fmt.Errorf("record encounter %s: %w", req.PatientCode, err)
	}
	return nil
}

func (r *Recorder) loadOrNew(ctx context.Context, req RecordRequest) (*Aggregate, error) {
	agg, err := r.store.Load(ctx, req.PatientCode)
	if err == nil {
		return agg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	agg = NewAggregate(req.PatientCode)
	err = agg.Register(&PatientRegisteredData{
		Name:         req.Name,
		Age:          req.Intake.Age,
		Gender:       req.Intake.Gender,
		PatientHash:  req.PatientHash,
		Source:       req.Source,
		RegisteredAt: req.AssessedAt,
	})
	return agg, err
}

// maxCodeAttempts bounds the search for an unused patient code
const maxCodeAttempts = 8

// NewCode returns a patient code with no recorded encounter. Store errors
// end the search early with the last candidate.
func (r *Recorder) NewCode(ctx context.Context) string {
	code := NewPatientCode()
	for i := 1; i < maxCodeAttempts; i++ {
		_, err := r.store.Load(ctx, code)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				r.logger.Warn("patient code lookup failed", zap.Error(err))
			}
			return code
		}
		code = NewPatientCode()
	}
	return code
}

// Go records in the background, detached from the caller's cancellation
func (r *Recorder) Go(ctx context.Context, req RecordRequest) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		if err := r.Record(ctx, req); err != nil {
			r.logger.Error("failed to record encounter",
				zap.String("patient_code", req.PatientCode),
				zap.String("correlation_id", req.CorrelationID),
				zap.Error(err))
			if r.OnFailure != nil {
				r.OnFailure(err)
			}
		}
	}()
}
