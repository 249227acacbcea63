package gateways

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
)

// DefaultIncrementalsURL is the public incrementals repository
const DefaultIncrementalsURL = "https://repo.jenkins-ci.org/incrementals/"

// ArtifactoryGateway implements ArtifactStore against an Artifactory repository
type ArtifactoryGateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  interfaces.Logger
}

// NewArtifactoryGateway creates a new Artifactory store rooted at baseURL
func NewArtifactoryGateway(client *http.Client, baseURL, apiKey string, logger interfaces.Logger) *ArtifactoryGateway {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultIncrementalsURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ArtifactoryGateway{client: client, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

// Name identifies the store in result bodies
func (g *ArtifactoryGateway) Name() string {
	return "Artifactory"
}

// URL returns where a repository path is served from
func (g *ArtifactoryGateway) URL(path string) string {
	return g.baseURL + strings.TrimPrefix(path, "/")
}

// Exists issues a single GET; only 200 counts as published
func (g *ArtifactoryGateway) Exists(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL(path), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", g.URL(path), err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

// Publish streams the archive in one PUT and lets Artifactory explode it atomically
func (g *ArtifactoryGateway) Publish(ctx context.Context, archive *gateways.DownloadedArchive) (*gateways.PublishResponse, error) {
	//nolint:gosec // G304: archive path is inside the per-invocation temporary directory
	f, err := os.Open(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.baseURL+archiveFileName, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = archive.Size
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("X-Explode-Archive", "true")
	req.Header.Set("X-Explode-Archive-Atomic", "true")
	req.Header.Set("X-JFrog-Art-Api", g.apiKey)
	if archive.SHA256 != "" {
		req.Header.Set("X-Checksum-Sha256", archive.SHA256)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	g.logger.Info("Uploaded archive", interfaces.F("status", resp.StatusCode), interfaces.F("bytes", archive.Size))

	return &gateways.PublishResponse{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
	}, nil
}

// statusText returns the reason phrase of a response ("Created" for "201 Created")
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
