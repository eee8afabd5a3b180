package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/infrastructure/redpanda"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/triage"
	"github.com/drfirst/go-triage/pkg/idempotency"
	"github.com/drfirst/go-triage/pkg/workerpool"
)

// memInbox mimics the inbox state machine in memory
type memInbox struct {
	mu     sync.Mutex
	done   map[string]json.RawMessage
	failed map[string]bool
}

func newMemInbox() *memInbox {
	return &memInbox{done: map[string]json.RawMessage{}, failed: map[string]bool{}}
}

func (i *memInbox) Process(ctx context.Context, key, _ string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error) {
	i.mu.Lock()
	if r, ok := i.done[key]; ok {
		i.mu.Unlock()
		return &idempotency.ProcessResult{Result: r}, nil
	}
	if i.failed[key] {
		i.mu.Unlock()
		return nil, idempotency.ErrPreviouslyFailed
	}
	i.mu.Unlock()

	r, err := fn(ctx, payload)
	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		if idempotency.IsTerminal(err) {
			i.failed[key] = true
		}
		return nil, err
	}
	i.done[key] = r
	return &idempotency.ProcessResult{IsNew: true, Result: r}, nil
}

type stubEngine struct {
	calls int
	err   error
}

func (s *stubEngine) Assess(context.Context, *triage.IntakeRecord) (*triage.Assessment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &triage.Assessment{RiskLevel: triage.RiskHigh, PriorityScore: 92, Department: "Cardiology"}, nil
}

func newProcessor(engine *stubEngine, in inbox) *processor {
	return &processor{
		svc:    intake.NewService(engine, nil, nil),
		inbox:  in,
		logger: zap.NewNop(),
	}
}

func message(t *testing.T, m intake.Message) *redpanda.ConsumedMessage {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return &redpanda.ConsumedMessage{Topic: redpanda.TopicTriageIntakes, Key: []byte("kiosk-7"), Value: b}
}

func validMessage() intake.Message {
	return intake.Message{
		Name:        "Noor",
		Age:         61,
		Gender:      "female",
		Vitals:      triage.RawVitals{HeartRate: "128", BloodPressure: "88/54"},
		Symptoms:    []string{"Chest Pain"},
		Source:      "kiosk",
		SubmittedAt: time.Date(2026, 5, 2, 8, 30, 12, 0, time.UTC),
	}
}

func TestProcessOnce(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	in := newMemInbox()
	p := newProcessor(engine, in)
	msg := message(t, validMessage())

	first, err := p.process(context.Background(), msg)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var out outcome
	if err := json.Unmarshal(first, &out); err != nil {
		t.Fatal(err)
	}
	if out.RiskLevel != "high" || out.PriorityScore != 92 || !strings.HasPrefix(out.PatientCode, "P-") {
		t.Errorf("outcome = %+v", out)
	}

	// redelivery is served from the inbox
	second, err := p.process(context.Background(), msg)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if string(second) != string(first) {
		t.Errorf("redelivery result = %s, want %s", second, first)
	}
	if engine.calls != 1 {
		t.Errorf("engine ran %d times, want 1", engine.calls)
	}
}

func TestProcessRejectsBadPayloadsTerminally(t *testing.T) {
	t.Parallel()

	bad := validMessage()
	bad.Age = -2

	tests := []struct {
		name string
		msg  *redpanda.ConsumedMessage
	}{
		{"not json", &redpanda.ConsumedMessage{Value: []byte("<xml/>")}},
		{"invalid intake", message(t, bad)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(&stubEngine{}, newMemInbox())
			_, err := p.process(context.Background(), tt.msg)
			if !idempotency.IsTerminal(err) {
				t.Fatalf("err = %v, want terminal", err)
			}
		})
	}
}

func TestProcessEngineFailureIsRetryable(t *testing.T) {
	t.Parallel()

	p := newProcessor(&stubEngine{err: errors.New("model unavailable")}, newMemInbox())
	_, err := p.process(context.Background(), message(t, validMessage()))
	if err == nil || idempotency.IsTerminal(err) {
		t.Fatalf("err = %v, want retryable error", err)
	}
}

func TestHandleWrapsResult(t *testing.T) {
	t.Parallel()

	p := newProcessor(&stubEngine{}, newMemInbox())
	res := p.handle(context.Background(), &workerpool.Task{ID: "t1", Payload: message(t, validMessage())})
	if !res.Success || res.TaskID != "t1" {
		t.Fatalf("result = %+v", res)
	}

	res = p.handle(context.Background(), &workerpool.Task{ID: "t2", Payload: "wrong"})
	if res.Success || !idempotency.IsTerminal(res.Error) {
		t.Fatalf("unexpected payload result = %+v", res)
	}
}

func TestPatientCodeForIsStable(t *testing.T) {
	t.Parallel()

	sub := intake.Submission{Name: "Noor", Source: "kiosk", SubmittedAt: time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)}
	a := patientCodeFor("kiosk-7", sub)
	b := patientCodeFor("kiosk-7", sub)
	if a != b || len(a) != 6 {
		t.Fatalf("codes = %q, %q", a, b)
	}
	if strings.ToUpper(a) != a {
		t.Errorf("code %q should be upper case", a)
	}
}

func TestDeadLetterPayload(t *testing.T) {
	t.Parallel()

	if got := string(deadLetterPayload([]byte(`{"a":1}`))); got != `{"a":1}` {
		t.Errorf("json payload = %s", got)
	}
	if got := string(deadLetterPayload([]byte("plain"))); got != `"plain"` {
		t.Errorf("text payload = %s", got)
	}
}
