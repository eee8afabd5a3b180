package triage

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch indicates a feature vector that does not match a
// classifier's trained schema. Always fatal for the request.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// ErrNoIntake is returned when Assess is called without an intake record
var ErrNoIntake = errors.New("intake is required")

// Prediction is a single classifier invocation result
type Prediction struct {
	// Class is the index of the predicted class
	Class int
	// Probabilities holds one entry per class, in class order
	Probabilities []float64
}

// Classifier maps a fixed-size feature vector to a class and a full
// probability distribution. Implementations must be safe for concurrent use.
type Classifier interface {
	Classes() []string
	FeatureNames() []string
	PredictWithProbabilities(x FeatureVector) (Prediction, error)
}

// ConditionClassifier is a Classifier over symptom vectors
type ConditionClassifier interface {
	Classifier
	SymptomColumns() []string
}

// UrgencyFeatureNames is the trained schema of the urgency classifier
var UrgencyFeatureNames = []string{
	"age",
	"heart_rate",
	"systolic_blood_pressure",
	"oxygen_saturation",
	"body_temperature",
	"chronic_disease_count",
}

// UrgencyClassCount is the number of urgency classes (low, medium, high, critical)
const UrgencyClassCount = 4

// checkSchema verifies that got matches want name-for-name
func checkSchema(kind string, got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %s classifier expects %d features, engine produces %d",
			ErrSchemaMismatch, kind, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %s feature %d is %q, engine produces %q",
				ErrSchemaMismatch, kind, i, got[i], want[i])
		}
	}
	return nil
}

// checkPrediction validates a classifier output against its class list
func checkPrediction(kind string, p Prediction, classes int) error {
	if len(p.Probabilities) != classes {
		return fmt.Errorf("%s classifier returned %d probabilities for %d classes",
			kind, len(p.Probabilities), classes)
	}
	if p.Class < 0 || p.Class >= classes {
		return fmt.Errorf("%s classifier returned class %d outside [0,%d)", kind, p.Class, classes)
	}
	return nil
}
