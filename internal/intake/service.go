package intake

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/domain/encounter"
	"github.com/drfirst/go-triage/internal/infrastructure/waitlist"
	"github.com/drfirst/go-triage/internal/observability/metrics"
	"github.com/drfirst/go-triage/internal/triage"
	"github.com/drfirst/go-triage/pkg/circuitbreaker"
)

// Assessor runs the triage engine
type Assessor interface {
	Assess(ctx context.Context, in *triage.IntakeRecord) (*triage.Assessment, error)
}

// Outcome is the result of a triage submission
type Outcome struct {
	PatientCode string
	Name        string
	Intake      triage.IntakeRecord
	Assessment  *triage.Assessment
	AssessedAt  time.Time
}

// Service is the business boundary for triage submissions
type Service struct {
	engine   Assessor
	recorder *encounter.Recorder
	queue    waitlist.Waitlist
	breaker  *circuitbreaker.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithWaitlist queues every assessed patient. The breaker may be nil.
func WithWaitlist(q waitlist.Waitlist, breaker *circuitbreaker.CircuitBreaker) Option {
	return func(s *Service) {
		s.queue = q
		s.breaker = breaker
	}
}

// WithMetrics records assessment and queue metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a triage service
func NewService(engine Assessor, recorder *encounter.Recorder, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		engine:   engine,
		recorder: recorder,
		logger:   logger,
		tracer:   otel.Tracer("triage-service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit assesses the intake, queues the patient and records the encounter
// in the background. Recording and queueing failures never fail the call.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	out, err := s.assess(ctx, &sub)
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, out)
	if s.recorder != nil {
		s.recorder.Go(ctx, s.recordRequest(sub, out))
	}
	return out, nil
}

// SubmitSync is Submit with the encounter recorded before returning. Used
// by the worker so a failed write is retried through the inbox.
func (s *Service) SubmitSync(ctx context.Context, sub Submission) (*Outcome, error) {
	out, err := s.assess(ctx, &sub)
	if err != nil {
		return nil, err
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, s.recordRequest(sub, out)); err != nil {
			s.metrics.PersistenceFailed(err)
			return nil, err
		}
	}
	s.enqueue(ctx, out)
	return out, nil
}

// Assess runs the engine only
func (s *Service) Assess(ctx context.Context, in triage.IntakeRecord) (*triage.Assessment, error) {
	if err := Validate(&in); err != nil {
		return nil, err
	}
	return s.run(ctx, &in)
}

func (s *Service) run(ctx context.Context, in *triage.IntakeRecord) (*triage.Assessment, error) {
	start := s.now()
	a, err := s.engine.Assess(ctx, in)
	if err != nil {
		s.metrics.AssessmentFailed()
		return nil, err
	}
	s.metrics.ObserveAssessment(string(a.RiskLevel), time.Since(start))
	return a, nil
}

func (s *Service) assess(ctx context.Context, sub *Submission) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "triage_submit",
		trace.WithAttributes(attribute.String("triage.source", sub.Source)))
	defer span.End()

	if sub.PatientCode == "" {
		if s.recorder != nil {
			sub.PatientCode = s.recorder.NewCode(ctx)
		} else {
			sub.PatientCode = encounter.NewPatientCode()
		}
	}
	span.SetAttributes(attribute.String("triage.patient_code", sub.PatientCode))

	if err := Validate(&sub.Intake); err != nil {
		span.SetStatus(codes.Error, "invalid intake")
		return nil, err
	}
	a, err := s.run(ctx, &sub.Intake)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assess")
		return nil, fmt.Errorf("assess %s: %w", sub.PatientCode, err)
	}

	at := sub.SubmittedAt
	if at.IsZero() {
		at = s.now()
	}
	out := &Outcome{
		PatientCode: sub.PatientCode,
		Name:        sub.Name,
		Intake:      sub.Intake,
		Assessment:  a,
		AssessedAt:  at.UTC(),
	}

	s.logger.Info("patient triaged",
		zap.String("patient_code", out.PatientCode),
		zap.String("source", sub.Source),
		zap.String("risk_level", string(a.RiskLevel)),
		zap.Int("priority_score", a.PriorityScore),
		zap.String("department", a.Department),
		zap.String("correlation_id", sub.CorrelationID),
	)
	return out, nil
}

func (s *Service) recordRequest(sub Submission, out *Outcome) encounter.RecordRequest {
	return encounter.RecordRequest{
		PatientCode:   out.PatientCode,
		Name:          out.Name,
		PatientHash:   sub.PatientHash,
		Source:        sub.Source,
		CorrelationID: sub.CorrelationID,
		Intake:        out.Intake,
		Assessment:    *out.Assessment,
		AssessedAt:    out.AssessedAt,
	}
}

func (s *Service) enqueue(ctx context.Context, out *Outcome) {
	if s.queue == nil {
		return
	}
	entry := waitlist.NewEntry(out.PatientCode, out.Name, &out.Intake, out.Assessment, out.AssessedAt)
	err := s.withBreaker(ctx, func(ctx context.Context) error {
		return s.queue.Add(ctx, entry)
	})
	if err != nil {
		s.logger.Warn("failed to queue patient",
			zap.String("patient_code", out.PatientCode), zap.Error(err))
		return
	}
	s.refreshQueueSize(ctx)
}

// Dequeue removes a patient from the waitlist. Failures are logged.
func (s *Service) Dequeue(ctx context.Context, code string) {
	if s.queue == nil {
		return
	}
	err := s.withBreaker(ctx, func(ctx context.Context) error {
		return s.queue.Remove(ctx, code)
	})
	if err != nil {
		s.logger.Warn("failed to dequeue patient",
			zap.String("patient_code", code), zap.Error(err))
		return
	}
	s.refreshQueueSize(ctx)
}

// Queue lists waiting patients, highest priority first
func (s *Service) Queue(ctx context.Context, n int) ([]waitlist.Entry, error) {
	if s.queue == nil {
		return []waitlist.Entry{}, nil
	}
	var entries []waitlist.Entry
	err := s.withBreaker(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.queue.Top(ctx, n)
		return err
	})
	return entries, err
}

func (s *Service) refreshQueueSize(ctx context.Context) {
	if n, err := s.queue.Len(ctx); err == nil {
		s.metrics.SetWaitlistSize(n)
	}
}

func (s *Service) withBreaker(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Do(ctx, fn)
}
