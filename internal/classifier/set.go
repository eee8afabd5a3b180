package classifier

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/triage"
)

// Set holds the two models the engine needs. Built once at startup.
type Set struct {
	Urgency   *Model
	Condition *Model
}

// LoadSet loads urgency.yaml and condition.yaml from dir
func LoadSet(dir string, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	urgency, err := Load(filepath.Join(dir, UrgencyFile))
	if err != nil {
		return nil, fmt.Errorf("load urgency model: %w", err)
	}
	if n := len(urgency.Classes()); n != triage.UrgencyClassCount {
		return nil, fmt.Errorf("%w: urgency model has %d classes, want %d",
			ErrInvalidModel, n, triage.UrgencyClassCount)
	}

	condition, err := Load(filepath.Join(dir, ConditionFile))
	if err != nil {
		return nil, fmt.Errorf("load condition model: %w", err)
	}

	logger.Info("classifiers loaded",
		zap.String("dir", dir),
		zap.String("urgency_version", urgency.Version()),
		zap.Int("condition_classes", len(condition.Classes())),
		zap.Int("symptom_columns", len(condition.SymptomColumns())),
	)

	return &Set{Urgency: urgency, Condition: condition}, nil
}

// Engine builds a triage engine over the set
func (s *Set) Engine(logger *zap.Logger) (*triage.Engine, error) {
	return triage.NewEngine(s.Urgency, s.Condition, logger)
}
