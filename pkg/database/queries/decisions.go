package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/OldStager01/generalscaler/pkg/models"
)

type DecisionRepository struct {
	db *sql.DB
}

func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

func (r *DecisionRepository) Save(ctx context.Context, rec *models.DecisionRecord) error {
	query := `
		INSERT INTO scaling_decisions
			(namespace, name, timestamp, outcome, policy, current_value, target_value,
			 current_replicas, desired_replicas, actuated_replicas, block_reason, failure_kind, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		rec.Namespace,
		rec.Name,
		rec.Timestamp,
		rec.Outcome,
		rec.Policy,
		rec.CurrentValue,
		rec.TargetValue,
		rec.CurrentReplicas,
		rec.DesiredReplicas,
		rec.ActuatedReplicas,
		rec.BlockReason,
		rec.FailureKind,
		rec.Error,
	).Scan(&rec.ID)
}

// ListByTarget returns the newest decisions for target first.
func (r *DecisionRepository) ListByTarget(ctx context.Context, target models.ScalingTarget, limit int) ([]*models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, namespace, name, timestamp, outcome, policy, current_value, target_value,
		       current_replicas, desired_replicas, actuated_replicas, block_reason, failure_kind, error
		FROM scaling_decisions
		WHERE namespace = $1 AND name = $2
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, target.Namespace, target.Name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.DecisionRecord, 0, limit)
	for rows.Next() {
		var rec models.DecisionRecord
		var outcome string
		err := rows.Scan(
			&rec.ID,
			&rec.Namespace,
			&rec.Name,
			&rec.Timestamp,
			&outcome,
			&rec.Policy,
			&rec.CurrentValue,
			&rec.TargetValue,
			&rec.CurrentReplicas,
			&rec.DesiredReplicas,
			&rec.ActuatedReplicas,
			&rec.BlockReason,
			&rec.FailureKind,
			&rec.Error,
		)
		if err != nil {
			return nil, err
		}
		rec.Outcome = models.Outcome(outcome)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// DeleteOlderThan prunes history and returns the number of rows removed.
func (r *DecisionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scaling_decisions WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
