package triage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Weights of the two classifier confidences in the blended score
const (
	urgencyWeight   = 0.6
	conditionWeight = 0.4
)

// Engine composes feature preparation, both classifiers and the rule-based
// stages into an Assessment. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	urgency   Classifier
	condition ConditionClassifier
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewEngine validates both classifiers against the feature schemas the engine
// produces and returns a ready engine
func NewEngine(urgency Classifier, condition ConditionClassifier, logger *zap.Logger) (*Engine, error) {
	if urgency == nil || condition == nil {
		return nil, errors.New("both classifiers are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := checkSchema("urgency", urgency.FeatureNames(), UrgencyFeatureNames); err != nil {
		return nil, err
	}
	if n := len(urgency.Classes()); n != UrgencyClassCount {
		return nil, fmt.Errorf("urgency classifier has %d classes, want %d", n, UrgencyClassCount)
	}
	if err := checkSchema("condition", condition.FeatureNames(), condition.SymptomColumns()); err != nil {
		return nil, err
	}
	if len(condition.Classes()) == 0 {
		return nil, errors.New("condition classifier has no classes")
	}

	return &Engine{
		urgency:   urgency,
		condition: condition,
		logger:    logger,
		tracer:    otel.Tracer("triage-engine"),
	}, nil
}

// Assess runs the full pipeline for one intake. Any classifier failure fails
// the whole request; no partial assessment is returned.
func (e *Engine) Assess(ctx context.Context, in *IntakeRecord) (*Assessment, error) {
	if in == nil {
		return nil, ErrNoIntake
	}
	ctx, span := e.tracer.Start(ctx, "triage_assess",
		trace.WithAttributes(
			attribute.Int("intake.age", in.Age),
			attribute.Int("intake.symptoms", len(in.Symptoms)),
		),
	)
	defer span.End()

	urgency, err := e.scoreUrgency(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "urgency")
		return nil, err
	}

	condition, err := e.scoreCondition(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "condition")
		return nil, err
	}

	department := RouteDepartment(condition.Condition)
	los := EstimateLengthOfStay(urgency.RiskLevel, condition.Condition, in.Age, in.Vitals)

	a := &Assessment{
		RiskLevel:           urgency.RiskLevel,
		PriorityScore:       urgency.PriorityScore,
		TriageLevel:         urgency.TriageLevel,
		Confidence:          BlendConfidence(urgency.Confidence, condition.Confidence),
		UrgencyConfidence:   urgency.Confidence,
		PredictedCondition:  condition.Condition,
		ConditionConfidence: condition.Confidence,
		TopConditions:       condition.TopConditions,
		Department:          department,
		ContributingFactors: RankFactors(in.Vitals, in.Age),
		WaitingTimeMinutes:  WaitingTime(urgency.PriorityScore),
		EstimatedLOSDays:    los.Days,
		LOSConfidence:       los.Confidence,
	}

	span.SetAttributes(
		attribute.String("triage.risk_level", string(a.RiskLevel)),
		attribute.Int("triage.priority_score", a.PriorityScore),
		attribute.String("triage.department", a.Department),
	)

	e.logger.Debug("assessment composed",
		zap.String("risk_level", string(a.RiskLevel)),
		zap.Int("priority_score", a.PriorityScore),
		zap.String("condition", a.PredictedCondition),
		zap.String("department", a.Department),
		zap.Int("confidence", a.Confidence),
	)

	return a, nil
}

func (e *Engine) scoreUrgency(ctx context.Context, in *IntakeRecord) (UrgencyScore, error) {
	_, span := e.tracer.Start(ctx, "urgency_predict")
	defer span.End()

	if err := checkSchema("urgency", e.urgency.FeatureNames(), UrgencyFeatureNames); err != nil {
		return UrgencyScore{}, err
	}

	x := PrepareUrgencyFeatures(
		in.Age,
		in.Vitals.HeartRate,
		in.Vitals.SystolicBP,
		in.Vitals.OxygenSaturation,
		in.Vitals.Temperature,
		ChronicConditionCount(in.Conditions),
	)

	pred, err := e.urgency.PredictWithProbabilities(x)
	if err != nil {
		return UrgencyScore{}, fmt.Errorf("urgency predict: %w", err)
	}
	return ScoreUrgency(pred)
}

func (e *Engine) scoreCondition(ctx context.Context, in *IntakeRecord) (ConditionScore, error) {
	_, span := e.tracer.Start(ctx, "condition_predict")
	defer span.End()

	columns := e.condition.SymptomColumns()
	if err := checkSchema("condition", e.condition.FeatureNames(), columns); err != nil {
		return ConditionScore{}, err
	}

	x := PrepareSymptomFeatures(in.Symptoms, columns)

	pred, err := e.condition.PredictWithProbabilities(x)
	if err != nil {
		return ConditionScore{}, fmt.Errorf("condition predict: %w", err)
	}
	return ScoreCondition(pred, e.condition.Classes())
}

// BlendConfidence combines urgency and condition confidences, weighted 60/40
func BlendConfidence(urgency, condition int) int {
	return int(math.Round(float64(urgency)*urgencyWeight + float64(condition)*conditionWeight))
}

// Departments returns the routing table, for listing endpoints
func (e *Engine) Departments() []DepartmentRule {
	return DepartmentRules
}
