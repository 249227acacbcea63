package gateways

// SignatureVerifier checks detached signatures against trusted keys
type SignatureVerifier interface {
	// VerifyDetached checks an armored detached signature over payload
	VerifyDetached(payload, signature string) (signer string, err error)
}
