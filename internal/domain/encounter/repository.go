package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/infrastructure/postgres"
	"github.com/drfirst/go-triage/internal/infrastructure/redpanda"
)

// ErrVersionConflict is returned when another writer appended first
var ErrVersionConflict = errors.New("encounter modified concurrently")

// Store loads and saves encounter aggregates
type Store interface {
	Load(ctx context.Context, code string) (*Aggregate, error)
	Save(ctx context.Context, agg *Aggregate) error
	GetEvents(ctx context.Context, code string) ([]*Event, error)
}

// TopicFor returns the topic an event is relayed to
func TopicFor(t EventType) string {
	if t == EventAssessmentRecorded {
		return redpanda.TopicTriageAssessments
	}
	return redpanda.TopicPatientStatus
}

// Repository provides event sourcing persistence
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// Save persists new events for an aggregate together with one outbox row per
// event, in a single transaction
func (r *Repository) Save(ctx context.Context, agg *Aggregate) error {
	changes := agg.Changes()
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, event := range changes {
		if err := r.insertEvent(ctx, tx, event); err != nil {
			return err
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		entry := &postgres.OutboxEntry{
			AggregateID:   event.AggregateID,
			AggregateType: event.AggregateType,
			EventType:     string(event.EventType),
			Payload:       payload,
			KafkaTopic:    TopicFor(event.EventType),
			KafkaKey:      event.AggregateID,
		}
		if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("encounter saved",
		zap.String("patient_code", agg.ID()),
		zap.Int("events", len(changes)),
		zap.Int("version", agg.Version()))

	agg.ClearChanges()
	return nil
}

func (r *Repository) insertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	query := `
		INSERT INTO encounter_events
		(id, aggregate_id, event_type, event_data, version, timestamp, patient_hash, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.EventData,
		event.Version,
		event.Timestamp,
		event.PatientHash,
		event.CorrelationID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s version %d", ErrVersionConflict, event.AggregateID, event.Version)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Load retrieves an aggregate by patient code
func (r *Repository) Load(ctx context.Context, code string) (*Aggregate, error) {
	events, err := r.GetEvents(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	agg := NewAggregate(code)
	if err := agg.LoadFromHistory(events); err != nil {
		return nil, fmt.Errorf("replay %s: %w", code, err)
	}
	return agg, nil
}

// GetEvents retrieves all events for an aggregate in version order
func (r *Repository) GetEvents(ctx context.Context, code string) ([]*Event, error) {
	query := `
		SELECT id, aggregate_id, event_type, event_data, version, timestamp,
		       patient_hash, correlation_id
		FROM encounter_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{AggregateType: AggregateType}
		err := rows.Scan(
			&e.ID, &e.AggregateID, &e.EventType, &e.EventData, &e.Version,
			&e.Timestamp, &e.PatientHash, &e.CorrelationID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
