package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprint computation. The version suffix allows a
// future algorithm migration without ambiguity between old and new digests.
const (
	domainAttributes = "terrane/attributes/v1"
	domainSecret     = "terrane/secret/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null byte
// separator prevents domain/payload boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the canonical digest of an attribute set.
// Two attribute sets fingerprint identically iff they are structurally equal,
// independent of map iteration order or Unicode normalization form.
//
// ObservedState.Matches diffs by fingerprint, so the executor's
// create/update/no-op decision never depends on encoding accidents.
func Fingerprint(attrs Attributes) (string, error) {
	if attrs == nil {
		attrs = Attributes{}
	}
	data, err := MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("fingerprint attributes: %w", err)
	}
	return hashWithDomain(domainAttributes, data), nil
}

// SecretDigest computes the digest of secret plaintext for version
// comparison. The digest is safe to hold and log-adjacent code never sees the
// plaintext; only the secret lifecycle manager calls this.
func SecretDigest(plaintext []byte) string {
	return hashWithDomain(domainSecret, plaintext)
}
