// Package entities defines core domain models and data structures.
package entities

import "strings"

// DescriptorSuffix marks the package-descriptor entries of an archive
const DescriptorSuffix = ".pom"

// ArchiveEntry is a single file listed in a downloaded build archive
type ArchiveEntry struct {
	Path string

	// Descriptor is set for descriptor entries that parsed successfully
	Descriptor *Descriptor

	// DescriptorErr is set for descriptor entries that could not be read or parsed
	DescriptorErr error
}

// IsDescriptor reports whether the entry is a package descriptor
func (e ArchiveEntry) IsDescriptor() bool {
	return strings.HasSuffix(e.Path, DescriptorSuffix)
}

// Descriptor holds the coordinates and declared provenance of a published artifact
type Descriptor struct {
	GroupID    string
	ArtifactID string
	Version    string

	// HasScm is false when the descriptor carries no <scm> section at all
	HasScm bool
	ScmURL string
	ScmTag string
}

// ExpectedPath rebuilds the repository layout path of the descriptor from its GAV
func (d *Descriptor) ExpectedPath() string {
	return strings.ReplaceAll(d.GroupID, ".", "/") + "/" +
		d.ArtifactID + "/" +
		d.Version + "/" +
		d.ArtifactID + "-" + d.Version + DescriptorSuffix
}

// GAV returns the group:artifact:version triple
func (d *Descriptor) GAV() string {
	return d.GroupID + ":" + d.ArtifactID + ":" + d.Version
}
