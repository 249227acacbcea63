package services

import (
	"fmt"
	"strings"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// ReleaseStatus represents the readiness of a verified archive for publication
type ReleaseStatus string

// Release planning statuses
const (
	StatusReady        ReleaseStatus = "ready"
	StatusNoArtifacts  ReleaseStatus = "no_artifacts"
	StatusNoDescriptor ReleaseStatus = "no_descriptor"
)

// ReleaseValidation contains the publication plan for a verified archive
type ReleaseValidation struct {
	Status ReleaseStatus

	// EntryCount is the number of entries in the archive
	EntryCount int

	// DescriptorPath is the repository path of the primary descriptor
	DescriptorPath string

	// DescriptorURL is where the primary descriptor lives once published
	DescriptorURL string

	// StatusTargetURL is the directory URL reported back to source control
	StatusTargetURL string
}

// IsReady returns true if the archive should be probed and published
func (rv *ReleaseValidation) IsReady() bool {
	return rv.Status == StatusReady
}

// ErrorMessage returns a human-readable message if not ready
func (rv *ReleaseValidation) ErrorMessage(archiveURL string) string {
	switch rv.Status {
	case StatusReady:
		return ""
	case StatusNoArtifacts:
		return "Skipping deployment as no artifacts were found with the expected path, " +
			"typically due to a PR merge build not up to date with its base branch: " + archiveURL
	case StatusNoDescriptor:
		return fmt.Sprintf("No POM found in %d archive entries from %s", rv.EntryCount, archiveURL)
	default:
		return "Unknown status"
	}
}

// ReleaseService plans publication of verified archives
type ReleaseService struct{}

// NewReleaseService creates a new release service
func NewReleaseService() *ReleaseService {
	return &ReleaseService{}
}

// ValidateRelease decides whether a verified archive can be published and where it will land.
// storeURL maps a repository path to its published location.
func (s *ReleaseService) ValidateRelease(verification *entities.Verification, storeURL func(string) string) *ReleaseValidation {
	validation := &ReleaseValidation{}
	if verification != nil {
		validation.EntryCount = len(verification.Paths)
	}

	primary, ok := verification.Primary()
	switch {
	case validation.EntryCount == 0:
		validation.Status = StatusNoArtifacts
		return validation
	case !ok:
		validation.Status = StatusNoDescriptor
		return validation
	}

	validation.Status = StatusReady
	validation.DescriptorPath = primary.Path
	validation.DescriptorURL = storeURL(primary.Path)
	validation.StatusTargetURL = directoryURL(validation.DescriptorURL)
	return validation
}

// directoryURL strips the file name from a published descriptor URL
func directoryURL(fileURL string) string {
	idx := strings.LastIndex(fileURL, "/")
	if idx < 0 {
		return fileURL
	}
	return fileURL[:idx+1]
}

