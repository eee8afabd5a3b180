// Package handlers provides HTTP handlers for the triage API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/api/middleware"
	"github.com/drfirst/go-triage/internal/domain/encounter"
	"github.com/drfirst/go-triage/internal/fhir/mapper"
	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/infrastructure/waitlist"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/triage"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// TriageHandler handles triage and patient endpoints
type TriageHandler struct {
	svc    *intake.Service
	store  encounter.Store
	mapper *mapper.IntakeMapper
	logger *zap.Logger
}

// NewTriageHandler creates a new handler
func NewTriageHandler(svc *intake.Service, store encounter.Store, logger *zap.Logger) *TriageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageHandler{
		svc:    svc,
		store:  store,
		mapper: mapper.NewIntakeMapper(),
		logger: logger,
	}
}

// Routes returns the handler routes
func (h *TriageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/triage", h.Triage)
	r.Post("/fhir/triage", h.TriageFHIR)
	r.Get("/patients/{code}", h.GetPatient)
	r.Get("/patients/{code}/events", h.GetEvents)
	r.Patch("/patients/{code}/status", h.UpdateStatus)
	r.Get("/queue", h.Queue)
	r.Get("/departments", h.Departments)
	return r
}

// TriageRequest is the request body for a triage submission. Vitals are
// optional; temperature is in °F.
type TriageRequest struct {
	Name                   string   `json:"name"`
	Age                    *int     `json:"age"`
	Gender                 string   `json:"gender"`
	BloodPressureSystolic  *float64 `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *float64 `json:"blood_pressure_diastolic,omitempty"`
	HeartRate              *float64 `json:"heart_rate,omitempty"`
	Temperature            *float64 `json:"temperature,omitempty"`
	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
	RespiratoryRate        *float64 `json:"respiratory_rate,omitempty"`
	Symptoms               []string `json:"symptoms"`
	Conditions             []string `json:"conditions"`
	Notes                  string   `json:"notes,omitempty"`
}

func (r *TriageRequest) intake() triage.IntakeRecord {
	return triage.IntakeRecord{
		Age:    *r.Age,
		Gender: r.Gender,
		Vitals: triage.Vitals{
			HeartRate:        r.HeartRate,
			SystolicBP:       r.BloodPressureSystolic,
			DiastolicBP:      r.BloodPressureDiastolic,
			Temperature:      r.Temperature,
			OxygenSaturation: r.OxygenSaturation,
			RespiratoryRate:  r.RespiratoryRate,
		},
		Symptoms:   r.Symptoms,
		Conditions: r.Conditions,
		Notes:      r.Notes,
	}
}

// DiseaseProbability is one entry of the top conditions list
type DiseaseProbability struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

// Factor is a contributing factor as rendered to clients
type Factor struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Impact     int    `json:"impact"`
	IsPositive bool   `json:"isPositive"`
}

// TriageResponse is the assessment as returned to clients
type TriageResponse struct {
	PatientID           string               `json:"patient_id"`
	Name                string               `json:"name"`
	Age                 int                  `json:"age"`
	Gender              string               `json:"gender"`
	RiskLevel           string               `json:"risk_level"`
	PriorityScore       int                  `json:"priority_score"`
	TriageLevel         int                  `json:"triage_level"`
	Department          string               `json:"department"`
	Confidence          int                  `json:"confidence"`
	UrgencyConfidence   int                  `json:"urgency_confidence"`
	PredictedDisease    string               `json:"predicted_disease"`
	DiseaseConfidence   int                  `json:"disease_confidence"`
	TopDiseases         []DiseaseProbability `json:"top_diseases"`
	ContributingFactors []Factor             `json:"contributing_factors"`
	WaitingTime         int                  `json:"waiting_time"`
	EstimatedLOSDays    int                  `json:"estimated_los_days"`
	LOSConfidence       float64              `json:"los_confidence"`
	Vitals              map[string]string    `json:"vitals"`
	AssessedAt          time.Time            `json:"assessed_at"`
}

func newTriageResponse(code, name string, in triage.IntakeRecord, a *triage.Assessment, at time.Time) *TriageResponse {
	top := make([]DiseaseProbability, 0, len(a.TopConditions))
	for _, c := range a.TopConditions {
		top = append(top, DiseaseProbability{Disease: c.Condition, Probability: c.Probability})
	}
	factors := make([]Factor, 0, len(a.ContributingFactors))
	for _, f := range a.ContributingFactors {
		factors = append(factors, Factor(f))
	}
	return &TriageResponse{
		PatientID:           code,
		Name:                name,
		Age:                 in.Age,
		Gender:              in.Gender,
		RiskLevel:           string(a.RiskLevel),
		PriorityScore:       a.PriorityScore,
		TriageLevel:         a.TriageLevel,
		Department:          a.Department,
		Confidence:          a.Confidence,
		UrgencyConfidence:   a.UrgencyConfidence,
		PredictedDisease:    a.PredictedCondition,
		DiseaseConfidence:   a.ConditionConfidence,
		TopDiseases:         top,
		ContributingFactors: factors,
		WaitingTime:         a.WaitingTimeMinutes,
		EstimatedLOSDays:    a.EstimatedLOSDays,
		LOSConfidence:       a.LOSConfidence,
		Vitals:              triage.DisplayVitals(in.Vitals),
		AssessedAt:          at,
	}
}

// Triage handles POST /triage
func (h *TriageHandler) Triage(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("triage-handler").Start(r.Context(), "submit_triage")
	defer span.End()

	var req TriageRequest
	if err := decode(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Age == nil {
		h.jsonError(w, "age is required", http.StatusBadRequest)
		return
	}

	out, err := h.svc.Submit(ctx, intake.Submission{
		Name:          req.Name,
		Source:        "api:" + middleware.ClientID(ctx),
		CorrelationID: middleware.CorrelationID(ctx),
		Intake:        req.intake(),
	})
	if err != nil {
		h.submitError(w, err)
		return
	}
	span.SetAttributes(attribute.String("patient_code", out.PatientCode))

	h.writeJSON(w, http.StatusCreated,
		newTriageResponse(out.PatientCode, out.Name, out.Intake, out.Assessment, out.AssessedAt))
}

// TriageFHIR handles POST /fhir/triage. The body is a FHIR Bundle; the
// response is a FHIR RiskAssessment.
func (h *TriageHandler) TriageFHIR(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("triage-handler").Start(r.Context(), "submit_fhir_triage")
	defer span.End()

	var bundle fhir.Bundle
	if err := decode(w, r, &bundle); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mapped, err := h.mapper.MapBundle(&bundle)
	if err != nil {
		h.logger.Info("bundle mapping failed", zap.Error(err))
		h.jsonError(w, "failed to map bundle: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	out, err := h.svc.Submit(ctx, intake.Submission{
		Name:          mapped.PatientName,
		PatientHash:   mapped.PatientHash,
		Source:        "fhir:" + middleware.ClientID(ctx),
		CorrelationID: middleware.CorrelationID(ctx),
		Intake:        mapped.Intake,
		SubmittedAt:   mapped.AssessedAt,
	})
	if err != nil {
		h.submitError(w, err)
		return
	}

	subject := fhir.Reference{Reference: "Patient/" + mapped.PatientID, Display: mapped.PatientName}
	h.writeJSON(w, http.StatusCreated,
		mapper.ToRiskAssessment(out.Assessment, subject, out.PatientCode, out.AssessedAt))
}

// PatientResponse is an encounter replayed from its events
type PatientResponse struct {
	*TriageResponse
	PatientID string    `json:"patient_id"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	ArrivedAt time.Time `json:"arrived_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetPatient handles GET /patients/{code}
func (h *TriageHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	agg, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := PatientResponse{
		PatientID: agg.ID(),
		Status:    string(agg.Status()),
		Version:   agg.Version(),
		ArrivedAt: agg.ArrivedAt(),
		UpdatedAt: agg.UpdatedAt(),
	}
	if a := agg.Assessment(); a != nil && agg.Intake() != nil {
		resp.TriageResponse = newTriageResponse(agg.ID(), agg.Name(), *agg.Intake(), a, agg.AssessedAt())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetEvents handles GET /patients/{code}/events
func (h *TriageHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	events, err := h.store.GetEvents(r.Context(), code)
	if err != nil {
		h.logger.Error("get events failed", zap.String("patient_code", code), zap.Error(err))
		h.jsonError(w, "failed to get events", http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		h.jsonError(w, "patient not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// StatusRequest is the request for changing a patient's status
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// UpdateStatus handles PATCH /patients/{code}/status
func (h *TriageHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StatusRequest
	if err := decode(w, r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status, err := encounter.ParseStatus(req.Status)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	agg, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := agg.ChangeStatus(status, req.Reason); err != nil {
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	for _, e := range agg.Changes() {
		e.WithCorrelation(middleware.CorrelationID(ctx))
	}

	if err := h.store.Save(ctx, agg); err != nil {
		if errors.Is(err, encounter.ErrVersionConflict) {
			h.jsonError(w, "patient was modified concurrently", http.StatusConflict)
			return
		}
		h.logger.Error("save failed", zap.String("patient_code", agg.ID()), zap.Error(err))
		h.jsonError(w, "failed to save", http.StatusInternalServerError)
		return
	}

	if agg.Status() != encounter.StatusWaiting {
		h.svc.Dequeue(ctx, agg.ID())
	}

	h.logger.Info("patient status changed",
		zap.String("patient_code", agg.ID()),
		zap.String("status", string(agg.Status())),
		zap.String("correlation_id", middleware.CorrelationID(ctx)),
	)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": agg.ID(),
		"status":     agg.Status(),
		"version":    agg.Version(),
	})
}

// Queue handles GET /queue?limit=n
func (h *TriageHandler) Queue(w http.ResponseWriter, r *http.Request) {
	limit := waitlist.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.svc.Queue(r.Context(), limit)
	if err != nil {
		h.logger.Error("queue read failed", zap.Error(err))
		h.jsonError(w, "waitlist unavailable", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(entries),
		"patients": entries,
	})
}

// Departments handles GET /departments
func (h *TriageHandler) Departments(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"departments": triage.DepartmentRules,
		"fallback":    triage.FallbackDepartment,
	})
}

func (h *TriageHandler) load(w http.ResponseWriter, r *http.Request) (*encounter.Aggregate, bool) {
	code := chi.URLParam(r, "code")

	agg, err := h.store.Load(r.Context(), code)
	if errors.Is(err, encounter.ErrNotFound) {
		h.jsonError(w, "patient not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("load failed", zap.String("patient_code", code), zap.Error(err))
		h.jsonError(w, "failed to load patient", http.StatusInternalServerError)
		return nil, false
	}
	return agg, true
}

func (h *TriageHandler) submitError(w http.ResponseWriter, err error) {
	if errors.Is(err, intake.ErrInvalid) {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error("triage failed", zap.Error(err))
	h.jsonError(w, "failed to assess patient", http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (h *TriageHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}

func (h *TriageHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
