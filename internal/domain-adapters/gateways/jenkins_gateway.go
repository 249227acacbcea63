package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
)

// maxMetadataBytes bounds the CI metadata documents we are willing to decode
const maxMetadataBytes = 8 << 20

// HTTPJenkinsGateway implements JenkinsGateway over the CI host's JSON API
type HTTPJenkinsGateway struct {
	client *http.Client
	auth   BasicAuth
	logger interfaces.Logger
}

// NewHTTPJenkinsGateway creates a new CI metadata gateway
func NewHTTPJenkinsGateway(client *http.Client, auth BasicAuth, logger interfaces.Logger) *HTTPJenkinsGateway {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HTTPJenkinsGateway{client: client, auth: auth, logger: logger}
}

// FetchJSON GETs url and decodes its JSON object body
func (g *HTTPJenkinsGateway) FetchJSON(ctx context.Context, url string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	g.auth.apply(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}

	g.logger.Debug("Fetched CI metadata", interfaces.F("url", url))
	return doc, nil
}
