package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/infrastructure/redpanda"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/observability/metrics"
	"github.com/drfirst/go-triage/pkg/idempotency"
	"github.com/drfirst/go-triage/pkg/workerpool"
)

const handlerName = "triage-worker"

// inbox is the part of the idempotency inbox the processor needs
type inbox interface {
	Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error)
}

// processor runs one intake message exactly once
type processor struct {
	svc     *intake.Service
	inbox   inbox
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// outcome is stored in the inbox as the processing result
type outcome struct {
	PatientCode   string `json:"patient_code"`
	RiskLevel     string `json:"risk_level"`
	PriorityScore int    `json:"priority_score"`
	Department    string `json:"department"`
}

// deadLetter is published for messages that could not be processed
type deadLetter struct {
	Topic     string          `json:"topic"`
	Partition int32           `json:"partition"`
	Offset    int64           `json:"offset"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	FailedAt  time.Time       `json:"failed_at"`
}

// handle is the workerpool function. The payload is a consumed message.
func (p *processor) handle(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	msg, ok := task.Payload.(*redpanda.ConsumedMessage)
	if !ok {
		return &workerpool.Result{TaskID: task.ID, Error: idempotency.Terminal(
			fmt.Errorf("unexpected payload %T", task.Payload))}
	}

	data, err := p.process(ctx, msg)
	if err != nil {
		return &workerpool.Result{TaskID: task.ID, Error: err}
	}
	return &workerpool.Result{TaskID: task.ID, Success: true, Data: data}
}

func (p *processor) process(ctx context.Context, msg *redpanda.ConsumedMessage) (json.RawMessage, error) {
	p.metrics.MessageConsumed()

	var m intake.Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return nil, idempotency.Terminal(fmt.Errorf("decode intake: %w", err))
	}
	sub, err := m.Submission()
	if err != nil {
		return nil, idempotency.Terminal(err)
	}
	if sub.PatientCode == "" {
		sub.PatientCode = patientCodeFor(string(msg.Key), sub)
	}
	sub.CorrelationID = msg.Headers["correlation_id"]

	key := idempotency.GenerateKey(sub.Source, sub.PatientCode, sub.SubmittedAt)
	res, err := p.inbox.Process(ctx, key, handlerName, msg.Value, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		out, err := p.svc.SubmitSync(ctx, sub)
		if err != nil {
			if errors.Is(err, intake.ErrInvalid) {
				return nil, idempotency.Terminal(err)
			}
			return nil, err
		}
		return json.Marshal(outcome{
			PatientCode:   out.PatientCode,
			RiskLevel:     string(out.Assessment.RiskLevel),
			PriorityScore: out.Assessment.PriorityScore,
			Department:    out.Assessment.Department,
		})
	})

	switch {
	case errors.Is(err, idempotency.ErrPreviouslyFailed), errors.Is(err, idempotency.ErrDuplicateMessage):
		p.metrics.DuplicateMessage()
		p.logger.Info("skipping duplicate intake", zap.String("key", key), zap.Error(err))
		return nil, nil
	case err != nil:
		return nil, err
	}

	if !res.IsNew && !res.WasRecovered {
		p.metrics.DuplicateMessage()
		p.logger.Info("intake already processed",
			zap.String("key", key),
			zap.String("patient_code", sub.PatientCode))
	}
	return res.Result, nil
}

// patientCodeFor derives a stable code for intakes submitted without one,
// so redeliveries map to the same encounter
func patientCodeFor(recordKey string, sub intake.Submission) string {
	seed := recordKey
	if seed == "" {
		seed = sub.Name + "|" + sub.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return "P-" + strings.ToUpper(idempotency.GenerateKey(sub.Source, seed, sub.SubmittedAt)[:4])
}

// deadLetterPayload keeps JSON payloads as-is and quotes anything else
func deadLetterPayload(value []byte) json.RawMessage {
	if json.Valid(value) {
		return value
	}
	quoted, _ := json.Marshal(string(value))
	return quoted
}
