// Package gateways implements the HTTP adapters the publication pipeline talks to.
package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
)

const (
	// DefaultGitHubAPIURL is the public GitHub REST endpoint
	DefaultGitHubAPIURL = "https://api.github.com"

	// StatusContext identifies incrementals deployments among a commit's statuses
	StatusContext = "continuous-integration/jenkins/incrementals"

	// StatusDescription is shown next to the deployment status
	StatusDescription = "Deployed to Incrementals."

	userAgent = "incrementals-publisher"
)

// HTTPGitHubGateway implements SourceControlGateway against the GitHub REST API
type HTTPGitHubGateway struct {
	client  *http.Client
	baseURL string
	token   string
	logger  interfaces.Logger
}

// NewHTTPGitHubGateway creates a new GitHub gateway.
// An empty baseURL selects the public API.
func NewHTTPGitHubGateway(client *http.Client, baseURL, token string, logger interfaces.Logger) *HTTPGitHubGateway {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &HTTPGitHubGateway{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// checkRateLimit checks GitHub API rate limit headers and returns error if exhausted
func (g *HTTPGitHubGateway) checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	remainingInt, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}

	if remainingInt == 0 {
		limited := &gateways.RateLimitError{}
		if resetUnix, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			limited.ResetAt = time.Unix(resetUnix, 0)
		}
		return limited
	}

	if remainingInt <= 10 {
		g.logger.Warn("GitHub API rate limit low", interfaces.F("remaining", remainingInt))
	}

	return nil
}

func (g *HTTPGitHubGateway) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (g *HTTPGitHubGateway) do(req *http.Request) (*http.Response, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := g.checkRateLimit(resp); err != nil {
		//nolint:errcheck,gosec // G104: Best effort close on rate limit error
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func commitPath(owner, repo, sha string) string {
	return fmt.Sprintf("/repos/%s/%s/commits/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
}

// githubCommit is the subset of the commit object we read
type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Verification struct {
			Verified  bool   `json:"verified"`
			Reason    string `json:"reason"`
			Signature string `json:"signature"`
			Payload   string `json:"payload"`
		} `json:"verification"`
	} `json:"commit"`
}

// CommitExists looks the commit up once; anything but 200 counts as missing
func (g *HTTPGitHubGateway) CommitExists(ctx context.Context, owner, repo, sha string) (bool, error) {
	if owner == "" || repo == "" || sha == "" {
		return false, nil
	}

	req, err := g.newRequest(ctx, http.MethodGet, commitPath(owner, repo, sha), nil)
	if err != nil {
		g.logger.Warn("Commit lookup could not be built", interfaces.F("error", err.Error()))
		return false, nil
	}

	resp, err := g.do(req)
	if err != nil {
		g.logger.Warn("Commit lookup failed", interfaces.F("sha", sha), interfaces.F("error", err.Error()))
		var limited *gateways.RateLimitError
		if errors.As(err, &limited) {
			return false, limited
		}
		return false, nil
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		g.logger.Info("Commit not found", interfaces.F("sha", sha), interfaces.F("status", resp.StatusCode))
		return false, nil
	}
	return true, nil
}

// CommitSignature returns the verification block GitHub recorded for a commit
func (g *HTTPGitHubGateway) CommitSignature(ctx context.Context, owner, repo, sha string) (*gateways.CommitSignature, error) {
	req, err := g.newRequest(ctx, http.MethodGet, commitPath(owner, repo, sha), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to get commit: status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result githubCommit
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	v := result.Commit.Verification
	return &gateways.CommitSignature{
		Verified:  v.Verified,
		Reason:    v.Reason,
		Signature: v.Signature,
		Payload:   v.Payload,
	}, nil
}

// githubStatus is the GitHub API commit status format
type githubStatus struct {
	State       string `json:"state"`
	TargetURL   string `json:"target_url"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// CreateStatus marks sha as deployed to incrementals
func (g *HTTPGitHubGateway) CreateStatus(ctx context.Context, owner, repo, sha, targetURL string) error {
	body, err := json.Marshal(githubStatus{
		State:       "success",
		TargetURL:   targetURL,
		Description: StatusDescription,
		Context:     StatusContext,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	path := fmt.Sprintf("/repos/%s/%s/statuses/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	req, err := g.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := g.do(req)
	if err != nil {
		return fmt.Errorf("failed to create status: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return fmt.Errorf("failed to create status: status %d (failed to read response)", resp.StatusCode)
		}
		return fmt.Errorf("failed to create status: status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
