package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type permanent struct{ error }

func (permanent) Retryable() bool { return false }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.QueueSize = 4
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	cfg.GracefulShutdownTimeout = time.Second
	return cfg
}

func TestNew_RequiresWorkerFunc(t *testing.T) {
	t.Parallel()

	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Fatal("expected error without worker func")
	}
}

func TestSubmitWait(t *testing.T) {
	t.Parallel()

	p, err := New(testConfig(), func(_ context.Context, task *Task) *Result {
		return &Result{TaskID: task.ID, Success: true, Data: task.Payload.(int) * 2}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Stop()

	ctx := context.Background()
	for i := range 10 {
		res, err := p.SubmitWait(ctx, &Task{ID: "t", Payload: i})
		if err != nil {
			t.Fatalf("SubmitWait %d: %v", i, err)
		}
		if res.Data.(int) != i*2 {
			t.Errorf("task %d data = %v", i, res.Data)
		}
	}

	if s := p.Stats(); s.TasksCompleted != 10 || s.TasksFailed != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p, _ := New(testConfig(), func(_ context.Context, task *Task) *Result {
		if calls.Add(1) < 3 {
			return &Result{TaskID: task.ID, Error: errors.New("transient")}
		}
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "retry"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || calls.Load() != 3 {
		t.Errorf("success=%v calls=%d, want success after 3 calls", res.Success, calls.Load())
	}
	if got := p.Stats().TasksRetried; got != 2 {
		t.Errorf("retried = %d, want 2", got)
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	cause := permanent{errors.New("invalid intake")}
	p, _ := New(testConfig(), func(_ context.Context, task *Task) *Result {
		calls.Add(1)
		return &Result{TaskID: task.ID, Error: cause}
	}, nil)
	p.Start()
	defer p.Stop()

	res, _ := p.SubmitWait(context.Background(), &Task{ID: "bad"})
	if res.Success || calls.Load() != 1 {
		t.Errorf("success=%v calls=%d, want one failed call", res.Success, calls.Load())
	}
	if !errors.Is(res.Error, cause) {
		t.Errorf("error = %v, want %v", res.Error, cause)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	t.Parallel()

	p, _ := New(testConfig(), func(_ context.Context, task *Task) *Result {
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	p.Start()
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}

	if err := p.Submit(&Task{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit err = %v, want ErrStopped", err)
	}
	if _, err := p.SubmitWait(context.Background(), &Task{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Errorf("SubmitWait err = %v, want ErrStopped", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSubmitResults(t *testing.T) {
	t.Parallel()

	p, _ := New(testConfig(), func(_ context.Context, task *Task) *Result {
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	p.Start()

	if err := p.Submit(&Task{ID: "async"}); err != nil {
		t.Fatal(err)
	}
	select {
	case res := <-p.Results():
		if res.TaskID != "async" {
			t.Errorf("TaskID = %s", res.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	_ = p.Stop()
}
