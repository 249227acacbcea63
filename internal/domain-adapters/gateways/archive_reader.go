package gateways

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// maxDescriptorBytes caps how much of a single descriptor is parsed
const maxDescriptorBytes = 1 << 20

// ZipArchiveReader implements ArchiveReader for zip archives
type ZipArchiveReader struct{}

// NewZipArchiveReader creates a new archive reader
func NewZipArchiveReader() *ZipArchiveReader {
	return &ZipArchiveReader{}
}

// Entries opens the archive and lists its file entries in central-directory order.
// Descriptor entries are parsed; a parse failure is recorded on the entry, not returned.
func (r *ZipArchiveReader) Entries(path string) ([]entities.ArchiveEntry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	entries := make([]entities.ArchiveEntry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		entry := entities.ArchiveEntry{Path: f.Name}
		if entry.IsDescriptor() {
			entry.Descriptor, entry.DescriptorErr = readDescriptor(f)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func readDescriptor(f *zip.File) (*entities.Descriptor, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry: %w", err)
	}
	//nolint:errcheck // Defer close on entry reader
	defer rc.Close()

	return ParseDescriptor(io.LimitReader(rc, maxDescriptorBytes))
}

// pomProject is the subset of a Maven POM we validate
type pomProject struct {
	XMLName    xml.Name `xml:"project"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Version    string   `xml:"version"`
	Parent     struct {
		GroupID string `xml:"groupId"`
		Version string `xml:"version"`
	} `xml:"parent"`
	Scm *struct {
		URL string `xml:"url"`
		Tag string `xml:"tag"`
	} `xml:"scm"`
}

// ParseDescriptor decodes a POM, inheriting groupId and version from <parent> when absent
func ParseDescriptor(r io.Reader) (*entities.Descriptor, error) {
	var pom pomProject
	if err := xml.NewDecoder(r).Decode(&pom); err != nil {
		return nil, fmt.Errorf("failed to parse POM: %w", err)
	}

	d := &entities.Descriptor{
		GroupID:    strings.TrimSpace(pom.GroupID),
		ArtifactID: strings.TrimSpace(pom.ArtifactID),
		Version:    strings.TrimSpace(pom.Version),
	}
	if d.GroupID == "" {
		d.GroupID = strings.TrimSpace(pom.Parent.GroupID)
	}
	if d.Version == "" {
		d.Version = strings.TrimSpace(pom.Parent.Version)
	}
	if pom.Scm != nil {
		d.HasScm = true
		d.ScmURL = strings.TrimSpace(pom.Scm.URL)
		d.ScmTag = strings.TrimSpace(pom.Scm.Tag)
	}

	return d, nil
}
