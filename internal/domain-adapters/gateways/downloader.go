package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
)

// archiveFileName is the name downloaded archives are stored under
const archiveFileName = "archive.zip"

// Downloader streams build archives from the CI host to local files
type Downloader struct {
	httpClient *http.Client
	auth       BasicAuth
	logger     interfaces.Logger
}

// NewDownloader creates a new downloader
func NewDownloader(client *http.Client, auth BasicAuth, logger interfaces.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Downloader{httpClient: client, auth: auth, logger: logger}
}

// DownloadArchive downloads url into a new file inside dir.
// It returns only once the file is fully written and synced; on any error the partial file is removed.
func (d *Downloader) DownloadArchive(ctx context.Context, url, dir string) (*gateways.DownloadedArchive, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	d.auth.apply(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	dest := filepath.Join(dir, archiveFileName)
	//nolint:gosec // G304: dest is inside the per-invocation temporary directory
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, h), resp.Body)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	d.logger.Debug("Downloaded archive", interfaces.F("url", url), interfaces.F("bytes", written))

	return &gateways.DownloadedArchive{
		Path:   dest,
		Size:   written,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
