// Package definitions loads workflow definitions from JSON files and
// registers them with the persistence layer.
package definitions

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidDefinition indicates a definition file failed schema validation.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

// Loader validates and persists definition files.
type Loader struct {
	schema *gojsonschema.Schema
	repo   persistence.DefinitionRepository
	logger *slog.Logger
}

func NewLoader(repo persistence.DefinitionRepository, logger *slog.Logger) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile definition schema: %w", err)
	}

	return &Loader{
		schema: schema,
		repo:   repo,
		logger: logger.With("module", "definitions"),
	}, nil
}

// Parse validates raw JSON against the schema and decodes it. The trigger
// predicate is additionally checked for structural validity so a malformed
// expression is caught at load time, not at evaluation time.
func (l *Loader) Parse(raw []byte) (*models.WorkflowDefinition, error) {
	result, err := l.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(details, "; "))
	}

	var definition models.WorkflowDefinition

	err = json.Unmarshal(raw, &definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	if definition.Trigger != nil {
		// Missing metrics are expected here; only structural problems fail
		// the load.
		_, err = definition.Trigger.Evaluate(map[string]float64{})
		if err != nil && errors.Is(err, models.ErrMalformedPredicate) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
		}
	}

	return &definition, nil
}

// LoadDir parses every *.json file in dir and saves the valid ones. A file
// that fails validation is logged and skipped; the rest of the directory
// still loads.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list definition files: %w", err)
	}

	loaded := 0

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", path, err)
		}

		definition, err := l.Parse(raw)
		if err != nil {
			l.logger.WarnContext(ctx, "skipping invalid definition file",
				"path", path,
				"error", err)

			continue
		}

		err = l.repo.Save(ctx, definition)
		if err != nil {
			return loaded, fmt.Errorf("failed to save definition %s: %w", definition.ID, err)
		}

		loaded++
	}

	return loaded, nil
}
