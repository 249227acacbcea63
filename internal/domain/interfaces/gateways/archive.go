package gateways

import (
	"context"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// DownloadedArchive is a completed, seekable local copy of a build archive
type DownloadedArchive struct {
	Path   string
	Size   int64
	SHA256 string
}

// ArchiveFetcher downloads a build archive into a local directory
type ArchiveFetcher interface {
	DownloadArchive(ctx context.Context, url, dir string) (*DownloadedArchive, error)
}

// ArchiveReader lists the entries of a local archive, parsing descriptors
type ArchiveReader interface {
	Entries(path string) ([]entities.ArchiveEntry, error)
}
