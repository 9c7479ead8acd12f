package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OldStager01/generalscaler/pkg/models"
)

var ErrScalerNotFound = errors.New("scaler not found")

// ScalerRepository stores the specs of scalers managed through the API.
type ScalerRepository struct {
	db *sql.DB
}

func NewScalerRepository(db *sql.DB) *ScalerRepository {
	return &ScalerRepository{db: db}
}

func (r *ScalerRepository) List(ctx context.Context) ([]*models.Scaler, error) {
	query := `
		SELECT namespace, name, spec, created_at, updated_at
		FROM scalers
		ORDER BY namespace, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scalers []*models.Scaler
	for rows.Next() {
		scaler, err := scanScaler(rows)
		if err != nil {
			return nil, err
		}
		scalers = append(scalers, scaler)
	}

	return scalers, rows.Err()
}

func (r *ScalerRepository) Get(ctx context.Context, target models.ScalingTarget) (*models.Scaler, error) {
	query := `
		SELECT namespace, name, spec, created_at, updated_at
		FROM scalers
		WHERE namespace = $1 AND name = $2`

	scaler, err := scanScaler(r.db.QueryRowContext(ctx, query, target.Namespace, target.Name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScalerNotFound
	}
	return scaler, err
}

// Upsert creates or replaces the scaler's spec.
func (r *ScalerRepository) Upsert(ctx context.Context, scaler *models.Scaler) error {
	specJSON, err := json.Marshal(scaler.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}

	query := `
		INSERT INTO scalers (namespace, name, spec)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, name)
		DO UPDATE SET spec = EXCLUDED.spec, updated_at = NOW()
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		scaler.Target.Namespace,
		scaler.Target.Name,
		specJSON,
	).Scan(&scaler.CreatedAt, &scaler.UpdatedAt)
}

func (r *ScalerRepository) Delete(ctx context.Context, target models.ScalingTarget) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scalers WHERE namespace = $1 AND name = $2`,
		target.Namespace, target.Name)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrScalerNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScaler(row rowScanner) (*models.Scaler, error) {
	var scaler models.Scaler
	var specJSON []byte

	err := row.Scan(
		&scaler.Target.Namespace,
		&scaler.Target.Name,
		&specJSON,
		&scaler.CreatedAt,
		&scaler.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(specJSON, &scaler.Spec); err != nil {
		return nil, fmt.Errorf("failed to decode spec for %s: %w", scaler.Target, err)
	}
	return &scaler, nil
}
