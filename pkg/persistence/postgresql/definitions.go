package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// DefinitionRepository handles workflow definition database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const definitionColumns = `
	id
  , name
  , description
  , type
  , trigger
  , base_priority_weight
  , sequence_number
  , active
  , metadata
  , created_at
  , updated_at
`

func (r *DefinitionRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions ORDER BY sequence_number, created_at`

	return r.queryDefinitions(ctx, query)
}

func (r *DefinitionRepository) GetActive(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE active ORDER BY sequence_number, created_at`

	return r.queryDefinitions(ctx, query)
}

func (r *DefinitionRepository) queryDefinitions(ctx context.Context, query string, args ...any) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE id = $1`

	definition, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDefinitionNotFound
		}

		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	now := time.Now().UTC()

	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	triggerJSON, err := json.Marshal(definition.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}

	metadataJSON, err := json.Marshal(definition.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (id, name, description, type, trigger,
			base_priority_weight, sequence_number, active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			trigger = EXCLUDED.trigger,
			base_priority_weight = EXCLUDED.base_priority_weight,
			sequence_number = EXCLUDED.sequence_number,
			active = EXCLUDED.active,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		definition.ID,
		definition.Name,
		definition.Description,
		definition.Type,
		triggerJSON,
		definition.BasePriorityWeight,
		definition.SequenceNumber,
		definition.Active,
		metadataJSON,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}

	return nil
}

func scanDefinition(scanner interface{ Scan(dest ...any) error }) (*models.WorkflowDefinition, error) {
	var (
		definition                models.WorkflowDefinition
		triggerJSON, metadataJSON []byte
	)

	err := scanner.Scan(
		&definition.ID,
		&definition.Name,
		&definition.Description,
		&definition.Type,
		&triggerJSON,
		&definition.BasePriorityWeight,
		&definition.SequenceNumber,
		&definition.Active,
		&metadataJSON,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggerJSON != nil {
		trigger, err := models.ParsePredicate(triggerJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
		}

		definition.Trigger = trigger
	}

	if metadataJSON != nil {
		err := json.Unmarshal(metadataJSON, &definition.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &definition, nil
}
