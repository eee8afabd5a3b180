package encounter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drfirst/go-triage/internal/triage"
)

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	agg := registered(t, "P-BEEF")
	_ = agg.RecordAssessment(triage.IntakeRecord{Age: 70}, testAssessment(), time.Time{})
	if err := s.Save(ctx, agg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(agg.Changes()) != 0 {
		t.Error("Save should clear changes")
	}

	loaded, err := s.Load(ctx, "P-BEEF")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version() != 2 || loaded.Status() != StatusWaiting {
		t.Errorf("loaded version=%d status=%q", loaded.Version(), loaded.Status())
	}

	if err := loaded.ChangeStatus(StatusAttended, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, loaded); err != nil {
		t.Fatalf("Save after load: %v", err)
	}

	events, _ := s.GetEvents(ctx, "P-BEEF")
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[2].EventType != EventStatusChanged {
		t.Errorf("last event = %s", events[2].EventType)
	}
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryStore().Load(context.Background(), "P-0000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, registered(t, "P-CAFE")); err != nil {
		t.Fatal(err)
	}

	first, _ := s.Load(ctx, "P-CAFE")
	second, _ := s.Load(ctx, "P-CAFE")
	_ = first.RecordAssessment(triage.IntakeRecord{}, testAssessment(), time.Time{})
	_ = second.RecordAssessment(triage.IntakeRecord{}, testAssessment(), time.Time{})

	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("second Save err = %v, want ErrVersionConflict", err)
	}
}
