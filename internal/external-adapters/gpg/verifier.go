// Package gpg provides OpenPGP commit signature verification.
package gpg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// maxKeyringBytes bounds keyring downloads
const maxKeyringBytes = 10 * 1024 * 1024

// Verifier checks detached signatures against a trusted keyring
// This is in external-adapters to isolate the external dependency
type Verifier struct {
	keyring    openpgp.EntityList
	httpClient *http.Client
}

// NewVerifier creates a new verifier with an empty keyring
func NewVerifier(client *http.Client) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Verifier{
		keyring:    make(openpgp.EntityList, 0),
		httpClient: client,
	}
}

// Load imports a keyring from an http(s) URL or a local file path
func (v *Verifier) Load(ctx context.Context, location string) error {
	if strings.HasPrefix(location, "https://") || strings.HasPrefix(location, "http://") {
		return v.ImportKeysFromURL(ctx, location)
	}
	return v.ImportKeyFromFile(location)
}

// ImportKeysFromURL imports all keys from an armored keyring URL
func (v *Verifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keysURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download keyring: %w", err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keyring download failed with status %d", resp.StatusCode)
	}

	entities, err := openpgp.ReadArmoredKeyRing(io.LimitReader(resp.Body, maxKeyringBytes))
	if err != nil {
		return fmt.Errorf("failed to parse keyring: %w", err)
	}
	if len(entities) == 0 {
		return fmt.Errorf("no keys found in keyring")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// ImportKeyFromFile imports keys from an armored or binary keyring file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath comes from operator configuration
	f, err := os.Open(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("failed to reset file: %w", seekErr)
		}
		entities, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entities) == 0 {
		return fmt.Errorf("no keys found in file")
	}

	v.keyring = append(v.keyring, entities...)
	return nil
}

// VerifyDetached checks an armored detached signature over payload and returns the signer identity
func (v *Verifier) VerifyDetached(payload, signature string) (string, error) {
	if len(v.keyring) == 0 {
		return "", fmt.Errorf("no keys imported")
	}
	if !strings.HasPrefix(strings.TrimSpace(signature), "-----BEGIN PGP SIGNATURE-----") {
		return "", fmt.Errorf("signature is not an armored OpenPGP signature")
	}

	signer, err := openpgp.CheckArmoredDetachedSignature(v.keyring, strings.NewReader(payload), strings.NewReader(signature), nil)
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	if identity := signer.PrimaryIdentity(); identity != nil {
		return identity.Name, nil
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}
