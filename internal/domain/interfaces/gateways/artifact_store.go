package gateways

import "context"

// PublishResponse is what the artifact store answered to an upload
type PublishResponse struct {
	StatusCode int
	StatusText string
}

// ArtifactStore is the binary repository artifacts are published to
type ArtifactStore interface {
	// Name is used in result bodies ("Response from <Name>: ...")
	Name() string

	// URL returns the final published location of a repository path
	URL(path string) string

	// Exists probes whether a repository path is already published
	Exists(ctx context.Context, path string) (bool, error)

	// Publish uploads the archive, exploding it into the repository
	Publish(ctx context.Context, archive *DownloadedArchive) (*PublishResponse, error)
}
