// Package triage implements the triage decision engine.
// Converts intake vitals, symptoms and chronic conditions plus two classifier
// outputs into a structured assessment: urgency tier, priority score, routed
// department, ranked contributing factors and an estimated length of stay.
package triage

// RiskLevel is the collapsed urgency tier
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Vitals holds optional vital sign readings. A nil field means not measured.
type Vitals struct {
	HeartRate        *float64 `json:"heart_rate,omitempty"`
	SystolicBP       *float64 `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64 `json:"diastolic_bp,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"` // °F
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`
	RespiratoryRate  *float64 `json:"respiratory_rate,omitempty"`
}

// IntakeRecord is the validated intake for a single triage request
type IntakeRecord struct {
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	Vitals     Vitals   `json:"vitals"`
	Symptoms   []string `json:"symptoms"`
	Conditions []string `json:"conditions"`
	Notes      string   `json:"notes,omitempty"`
}

// FeatureVector is an ordered numeric input to a classifier
type FeatureVector []float64

// ContributingFactor is a single scored vital or demographic deviation
type ContributingFactor struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Impact     int    `json:"impact"`
	IsPositive bool   `json:"is_positive"`
}

// ConditionCandidate is a display entry in the top-k condition list.
// Probability is rescaled among the listed candidates (percent, 1 dp).
type ConditionCandidate struct {
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"`
}

// Assessment is the engine's output for one intake
type Assessment struct {
	RiskLevel           RiskLevel            `json:"risk_level"`
	PriorityScore       int                  `json:"priority_score"`
	TriageLevel         int                  `json:"triage_level"`
	Confidence          int                  `json:"confidence"`
	UrgencyConfidence   int                  `json:"urgency_confidence"`
	PredictedCondition  string               `json:"predicted_condition"`
	ConditionConfidence int                  `json:"condition_confidence"`
	TopConditions       []ConditionCandidate `json:"top_conditions"`
	Department          string               `json:"department"`
	ContributingFactors []ContributingFactor `json:"contributing_factors"`
	WaitingTimeMinutes  int                  `json:"waiting_time_minutes"`
	EstimatedLOSDays    int                  `json:"estimated_los_days"`
	LOSConfidence       float64              `json:"los_confidence"`
}

// Float returns a pointer to v, for building optional vitals
func Float(v float64) *float64 { return &v }
