package services

import (
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/services"
)

// integrityService implements IntegrityService on top of the pure verification fold
type integrityService struct{}

// NewIntegrityService creates the default archive integrity service
func NewIntegrityService() services.IntegrityService {
	return &integrityService{}
}

// Verify resolves the allowed prefixes and folds over the archive entries
func (s *integrityService) Verify(permissions entities.PermissionSet, entries []entities.ArchiveEntry, expected entities.Expectation) (*entities.Verification, error) {
	prefixes, err := ResolvePrefixes(permissions, expected)
	if err != nil {
		return nil, err
	}
	return VerifyArchive(entries, prefixes, expected)
}
