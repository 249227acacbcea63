package yaml

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/registry"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/schema"
)

// PermissionRepository implements repositories.PermissionRepository using a local YAML or JSON file
type PermissionRepository struct {
	path      string
	validator *schema.Validator
}

// NewPermissionRepository creates a file-backed permission repository
func NewPermissionRepository(path string, validator *schema.Validator) *PermissionRepository {
	return &PermissionRepository{path: path, validator: validator}
}

// FetchPermissions re-reads the file on every call
func (r *PermissionRepository) FetchPermissions(_ context.Context) (entities.PermissionSet, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse permissions file: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	return registry.FromDocument(doc, r.validator)
}
