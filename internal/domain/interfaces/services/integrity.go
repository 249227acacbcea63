// Package services defines interfaces for domain service contracts.
package services

import "github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"

// IntegrityService defines the permission and provenance checks applied to a build archive
// Implementations are pure and safe for concurrent use
type IntegrityService interface {
	// Verify checks every entry against the repository's allowed prefixes and the expected provenance
	Verify(permissions entities.PermissionSet, entries []entities.ArchiveEntry, expected entities.Expectation) (*entities.Verification, error)
}
