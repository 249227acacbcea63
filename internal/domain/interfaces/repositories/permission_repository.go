// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// PermissionRepository defines the interface for reading the permission registry.
// Implementations must fetch the registry fresh on every call.
type PermissionRepository interface {
	// FetchPermissions retrieves the current "owner/repo" to path-prefix mapping
	FetchPermissions(ctx context.Context) (entities.PermissionSet, error)
}
