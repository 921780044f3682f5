// Package fingerprint derives stable content identities for deduplication.
//
// Fingerprints are computed over the content itself, never over source
// URLs: upstream CDNs redirect and randomize URLs per request, so a URL
// is not a reliable identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Length is the hex length of a fingerprint.
const Length = 16

// Bytes fingerprints raw binary content (image or video payload).
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:Length]
}

// Text fingerprints quote text after normalization: surrounding whitespace
// trimmed and internal whitespace runs collapsed to a single space, so
// formatting variants of the same quote dedupe to one identity.
func Text(s string) string {
	return Bytes([]byte(Normalize(s)))
}

// Normalize returns the canonical form of quote text used for hashing.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
