// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"fmt"
	"time"
)

// RateLimitError means the source-control host refused a call because the API quota is spent
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "GitHub API rate limit exceeded (0 remaining)"
	}
	return fmt.Sprintf("GitHub API rate limit exceeded (0 remaining), resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// CommitSignature is the signature block GitHub reports for a commit
type CommitSignature struct {
	Verified  bool
	Reason    string
	Signature string
	Payload   string
}

// SourceControlGateway defines operations against the source-control host
type SourceControlGateway interface {
	// CommitExists reports whether sha resolves to a commit in owner/repo.
	// Any failure to confirm it must be reported as false. The error is set only
	// with a *RateLimitError, when the answer says nothing about the commit.
	CommitExists(ctx context.Context, owner, repo, sha string) (bool, error)

	// CommitSignature returns the signature GitHub recorded for a commit
	CommitSignature(ctx context.Context, owner, repo, sha string) (*CommitSignature, error)

	// CreateStatus marks a commit as deployed, pointing at targetURL
	CreateStatus(ctx context.Context, owner, repo, sha, targetURL string) error
}
