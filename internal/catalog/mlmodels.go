package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const modelColumns = "id, model_name, model_version, model_type, model_path, accuracy, precision, recall, f1_score, training_samples, features_used, hyperparameters, is_active, created_at, trained_at"

// SaveModel registers a trained model artifact. New models start inactive;
// promote one with ActivateModel.
func (s *Store) SaveModel(ctx context.Context, model MLModel) (*MLModel, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(model.ModelName) == "" {
		return nil, Wrap(ErrValidation, "save model", "model name is required", nil)
	}
	if strings.TrimSpace(model.ModelVersion) == "" {
		return nil, Wrap(ErrValidation, "save model", "model version is required", nil)
	}
	if strings.TrimSpace(model.ModelType) == "" {
		return nil, Wrap(ErrValidation, "save model", "model type is required", nil)
	}
	if strings.TrimSpace(model.ModelPath) == "" {
		return nil, Wrap(ErrValidation, "save model", "model path is required", nil)
	}
	for _, metric := range []struct {
		name  string
		value *float64
	}{
		{"accuracy", model.Accuracy},
		{"precision", model.Precision},
		{"recall", model.Recall},
		{"f1 score", model.F1Score},
	} {
		if metric.value != nil {
			if err := requireUnitRange(metric.name, *metric.value); err != nil {
				return nil, err
			}
		}
	}

	featuresJSON, err := marshalJSON(model.FeaturesUsed)
	if err != nil {
		return nil, err
	}
	hyperJSON, err := marshalJSON(model.Hyperparameters)
	if err != nil {
		return nil, err
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO ml_models (
            model_name, model_version, model_type, model_path,
            accuracy, precision, recall, f1_score,
            training_samples, features_used, hyperparameters,
            is_active, created_at, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		model.ModelName, model.ModelVersion, model.ModelType, model.ModelPath,
		nullableFloat(model.Accuracy), nullableFloat(model.Precision),
		nullableFloat(model.Recall), nullableFloat(model.F1Score),
		model.TrainingSamples, featuresJSON, hyperJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
		nullableTime(model.TrainedAt),
	)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "save model", "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "save model", "last insert id", err)
	}
	return s.GetModel(ctx, id)
}

// ActivateModel makes the given model the single active one for its
// (model_name, model_type) pair, deactivating any previous holder in the same
// transaction.
func (s *Store) ActivateModel(ctx context.Context, id int64) (*MLModel, error) {
	ctx = ensureContext(ctx)
	err := s.transact(ctx, func(tx *sql.Tx) error {
		var name, modelType string
		err := tx.QueryRowContext(ctx,
			`SELECT model_name, model_type FROM ml_models WHERE id = ?`, id,
		).Scan(&name, &modelType)
		if errors.Is(err, sql.ErrNoRows) {
			return Wrap(ErrNotFound, "activate model", fmt.Sprintf("id %d", id), nil)
		}
		if err != nil {
			return Wrap(ErrStorageUnavailable, "activate model", "lookup", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE ml_models SET is_active = 0 WHERE model_name = ? AND model_type = ? AND is_active = 1`,
			name, modelType); err != nil {
			return Wrap(ErrStorageUnavailable, "activate model", "deactivate previous", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE ml_models SET is_active = 1 WHERE id = ?`, id); err != nil {
			return Wrap(ErrStorageUnavailable, "activate model", "activate", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetModel(ctx, id)
}

// GetModel fetches a model by identifier.
func (s *Store) GetModel(ctx context.Context, id int64) (*MLModel, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+modelColumns+` FROM ml_models WHERE id = ?`, id)
	model, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "get model", fmt.Sprintf("id %d", id), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "get model", "scan", err)
	}
	return model, nil
}

// ActiveModel fetches the active model for a (name, type) pair.
func (s *Store) ActiveModel(ctx context.Context, name, modelType string) (*MLModel, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+modelColumns+` FROM ml_models
        WHERE model_name = ? AND model_type = ? AND is_active = 1`,
		name, modelType)
	model, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Wrap(ErrNotFound, "active model",
			fmt.Sprintf("no active model for %s/%s", name, modelType), nil)
	}
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "active model", "scan", err)
	}
	return model, nil
}

// ListModels lists every registered model, newest first.
func (s *Store) ListModels(ctx context.Context) ([]*MLModel, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+modelColumns+` FROM ml_models ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, Wrap(ErrStorageUnavailable, "list models", "execute", err)
	}
	defer rows.Close()

	var models []*MLModel
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, Wrap(ErrStorageUnavailable, "list models", "scan", err)
		}
		models = append(models, model)
	}
	return models, rows.Err()
}

func scanModel(scanner interface{ Scan(dest ...any) error }) (*MLModel, error) {
	var (
		model      MLModel
		accuracy   sql.NullFloat64
		precision  sql.NullFloat64
		recall     sql.NullFloat64
		f1Score    sql.NullFloat64
		features   sql.NullString
		hyper      sql.NullString
		isActive   sql.NullInt64
		createdRaw sql.NullString
		trainedRaw sql.NullString
	)
	if err := scanner.Scan(
		&model.ID, &model.ModelName, &model.ModelVersion, &model.ModelType, &model.ModelPath,
		&accuracy, &precision, &recall, &f1Score,
		&model.TrainingSamples, &features, &hyper, &isActive, &createdRaw, &trainedRaw,
	); err != nil {
		return nil, err
	}

	if accuracy.Valid {
		model.Accuracy = &accuracy.Float64
	}
	if precision.Valid {
		model.Precision = &precision.Float64
	}
	if recall.Valid {
		model.Recall = &recall.Float64
	}
	if f1Score.Valid {
		model.F1Score = &f1Score.Float64
	}
	if isActive.Valid {
		model.IsActive = isActive.Int64 != 0
	}
	if err := unmarshalJSON(features, &model.FeaturesUsed); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(hyper, &model.Hyperparameters); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		model.CreatedAt = created
	}
	if trainedRaw.Valid {
		if trained, err := parseTimeString(trainedRaw.String); err == nil {
			model.TrainedAt = &trained
		}
	}
	return &model, nil
}
