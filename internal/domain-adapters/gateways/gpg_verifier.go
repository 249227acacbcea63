package gateways

import (
	"context"
	"fmt"

	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter to implement the SignatureVerifier gateway
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier loads the keyring at location (file path or URL) into a signature verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(ctx context.Context, verifier *gpg.Verifier, location string) (*gpgVerifier, error) {
	if err := verifier.Load(ctx, location); err != nil {
		return nil, fmt.Errorf("failed to load commit keyring: %w", err)
	}
	return &gpgVerifier{verifier: verifier}, nil
}

// VerifyDetached verifies a commit signature over its payload
func (g *gpgVerifier) VerifyDetached(payload, signature string) (string, error) {
	signer, err := g.verifier.VerifyDetached(payload, signature)
	if err != nil {
		return "", fmt.Errorf("commit signature verification failed: %w", err)
	}
	return signer, nil
}
