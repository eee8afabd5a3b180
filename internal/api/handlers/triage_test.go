package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drfirst/go-triage/internal/classifier"
	"github.com/drfirst/go-triage/internal/domain/encounter"
	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/infrastructure/waitlist"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/triage"
)

type fixture struct {
	router http.Handler
	svc    *intake.Service
	store  *encounter.MemoryStore
	queue  *waitlist.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	set, err := classifier.LoadSet(filepath.Join("..", "..", "..", "models"), nil)
	if err != nil {
		t.Fatalf("load models: %v", err)
	}
	engine, err := set.Engine(nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	store := encounter.NewMemoryStore()
	queue := waitlist.NewMemory()
	svc := intake.NewService(engine, encounter.NewRecorder(store, nil, nil), nil,
		intake.WithWaitlist(queue, nil))

	return &fixture{
		router: NewTriageHandler(svc, store, nil).Routes(),
		svc:    svc,
		store:  store,
		queue:  queue,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// seed records a patient synchronously and returns its code
func (f *fixture) seed(t *testing.T) string {
	t.Helper()
	out, err := f.svc.SubmitSync(context.Background(), intake.Submission{
		Name:   "Seeded",
		Source: "test",
		Intake: triage.IntakeRecord{
			Age:      58,
			Gender:   "male",
			Vitals:   triage.Vitals{HeartRate: triage.Float(104), SystolicBP: triage.Float(150), DiastolicBP: triage.Float(92)},
			Symptoms: []string{"Chest Pain", "Shortness of Breath"},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out.PatientCode
}

func TestTriageReturnsAssessment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/triage", map[string]any{
		"name":              "Ada",
		"age":               72,
		"gender":            "female",
		"heart_rate":        118,
		"temperature":       101.8,
		"oxygen_saturation": 91,
		"symptoms":          []string{"Fever", "Cough", "Shortness of Breath"},
		"conditions":        []string{"COPD"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp TriageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.PatientID, "P-") || len(resp.PatientID) != 6 {
		t.Errorf("patient id = %q", resp.PatientID)
	}
	if resp.PriorityScore < 10 || resp.PriorityScore > 100 {
		t.Errorf("priority score = %d", resp.PriorityScore)
	}
	if resp.Department == "" || resp.PredictedDisease == "" {
		t.Errorf("missing routing: %+v", resp)
	}
	if len(resp.ContributingFactors) == 0 || len(resp.ContributingFactors) > triage.MaxFactors {
		t.Errorf("factors = %d", len(resp.ContributingFactors))
	}
	if resp.Vitals["bloodPressure"] != "N/A/N/A" {
		t.Errorf("blood pressure display = %q", resp.Vitals["bloodPressure"])
	}
	if resp.Vitals["heartRate"] != "118" {
		t.Errorf("heart rate display = %q", resp.Vitals["heartRate"])
	}

	// recording and queueing are asynchronous
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := f.store.Load(context.Background(), resp.PatientID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("encounter was not recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTriageValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed", "{not json"},
		{"missing age", map[string]any{"name": "X", "symptoms": []string{}}},
		{"negative age", map[string]any{"name": "X", "age": -4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/triage", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTriageFHIRBundle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	data, err := os.ReadFile(filepath.Join("..", "..", "..", "test", "fixtures", "triage_bundle_pneumonia.json"))
	if err != nil {
		t.Fatal(err)
	}
	rec := f.do(t, http.MethodPost, "/fhir/triage", string(data))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var ra fhir.RiskAssessment
	if err := json.Unmarshal(rec.Body.Bytes(), &ra); err != nil {
		t.Fatal(err)
	}
	if ra.ResourceType != "RiskAssessment" {
		t.Errorf("resourceType = %q", ra.ResourceType)
	}
	if len(ra.Prediction) == 0 {
		t.Error("expected predictions")
	}

	rec = f.do(t, http.MethodPost, "/fhir/triage", `{"resourceType":"Bundle","entry":[]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty bundle status = %d", rec.Code)
	}
}

func TestGetPatientAndEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	code := f.seed(t)

	rec := f.do(t, http.MethodGet, "/patients/"+code, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "waiting" || got["patient_id"] != code || got["name"] != "Seeded" {
		t.Errorf("patient = %v", got)
	}

	rec = f.do(t, http.MethodGet, "/patients/"+code+"/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d", rec.Code)
	}
	var events []encounter.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].EventType != encounter.EventPatientRegistered || events[1].EventType != encounter.EventAssessmentRecorded {
		t.Errorf("event order = %s, %s", events[0].EventType, events[1].EventType)
	}

	for _, path := range []string{"/patients/P-0000", "/patients/P-0000/events"} {
		if rec := f.do(t, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	code := f.seed(t)
	path := "/patients/" + code + "/status"

	if n, _ := f.queue.Len(context.Background()); n != 1 {
		t.Fatalf("queue length = %d, want 1", n)
	}

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown status", StatusRequest{Status: "sleeping"}, http.StatusBadRequest},
		{"skip to discharged", StatusRequest{Status: "discharged"}, http.StatusConflict},
		{"attended", StatusRequest{Status: "attended", Reason: "bay 4"}, http.StatusOK},
		{"back to waiting", StatusRequest{Status: "waiting"}, http.StatusConflict},
		{"discharged", StatusRequest{Status: "discharged"}, http.StatusOK},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPatch, path, tt.body)
		if rec.Code != tt.status {
			t.Fatalf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.status, rec.Body)
		}
	}

	if n, _ := f.queue.Len(context.Background()); n != 0 {
		t.Errorf("attended patient should leave the queue, len = %d", n)
	}

	agg, err := f.store.Load(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Status() != encounter.StatusDischarged || agg.Version() != 4 {
		t.Errorf("status = %s version = %d", agg.Status(), agg.Version())
	}

	if rec := f.do(t, http.MethodPatch, "/patients/P-0000/status", StatusRequest{Status: "attended"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing patient status = %d", rec.Code)
	}
}

func TestQueueOrdering(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	for i, p := range []int{30, 90, 60} {
		e := waitlist.Entry{PatientCode: "P-000" + string(rune('A'+i)), PriorityScore: p, ArrivedAt: now, ArrivedAtMillis: now.UnixMilli()}
		if err := f.queue.Add(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	rec := f.do(t, http.MethodGet, "/queue?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Count    int              `json:"count"`
		Patients []waitlist.Entry `json:"patients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Patients[0].PriorityScore != 90 || resp.Patients[1].PriorityScore != 60 {
		t.Errorf("queue = %+v", resp)
	}

	if rec := f.do(t, http.MethodGet, "/queue?limit=zero", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestDepartments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/departments", nil)
	var resp struct {
		Departments []triage.DepartmentRule `json:"departments"`
		Fallback    string                  `json:"fallback"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Departments) != len(triage.DepartmentRules) || resp.Departments[0].Department != "Cardiology" {
		t.Errorf("departments = %d, first = %+v", len(resp.Departments), resp.Departments[0])
	}
	if resp.Fallback != triage.FallbackDepartment {
		t.Errorf("fallback = %q", resp.Fallback)
	}
}
