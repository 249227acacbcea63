// Package registry reads the repository permission index over HTTP.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/schema"
)

// DefaultPermissionsURL is the index published by the repository-permissions-updater job
const DefaultPermissionsURL = "https://ci.jenkins.io/job/Infra/job/repository-permissions-updater/job/master/lastSuccessfulBuild/artifact/json/github-index.json"

// maxIndexBytes bounds the permission index download
const maxIndexBytes = 32 << 20

// HTTPPermissionRepository implements repositories.PermissionRepository against the permission index URL
type HTTPPermissionRepository struct {
	client    *http.Client
	url       string
	validator *schema.Validator
	logger    interfaces.Logger
}

// NewHTTPPermissionRepository creates a repository reading url on every fetch
func NewHTTPPermissionRepository(client *http.Client, url string, validator *schema.Validator, logger interfaces.Logger) *HTTPPermissionRepository {
	if client == nil {
		client = http.DefaultClient
	}
	if url == "" {
		url = DefaultPermissionsURL
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HTTPPermissionRepository{client: client, url: url, validator: validator, logger: logger}
}

// FetchPermissions downloads and validates the current index. Nothing is cached.
func (r *HTTPPermissionRepository) FetchPermissions(ctx context.Context) (entities.PermissionSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch permissions: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}

	perms, err := Decode(data, r.validator)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Fetched permissions", interfaces.F("repositories", len(perms)))
	return perms, nil
}

// Decode validates a JSON permission index and converts it into a PermissionSet
func Decode(data []byte, validator *schema.Validator) (entities.PermissionSet, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return FromDocument(doc, validator)
}

// FromDocument validates a decoded permission index and converts it into a PermissionSet
func FromDocument(doc any, validator *schema.Validator) (entities.PermissionSet, error) {
	if validator != nil {
		if err := validator.Validate(schema.Permissions, doc); err != nil {
			return nil, fmt.Errorf("invalid permissions document: %w", err)
		}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid permissions document: expected an object")
	}

	perms := make(entities.PermissionSet, len(obj))
	for repo, raw := range obj {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("invalid permissions for %s: expected an array", repo)
		}
		prefixes := make([]string, 0, len(list))
		for _, item := range list {
			prefix, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid permissions for %s: expected strings", repo)
			}
			prefixes = append(prefixes, prefix)
		}
		perms[repo] = prefixes
	}
	return perms, nil
}
