package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the content-derived key addressing a cache entry.
//
// It is a hex-encoded SHA-256 over the normalized content and the embedding
// backend identity (model plus configuration revision). Changing the backend
// or its configuration therefore changes every key: stale vectors become
// unreachable without any explicit purge.
type Fingerprint string

// Compute derives the fingerprint for content embedded by the given backend.
//
// Content is normalized before hashing (CRLF to LF, trailing whitespace
// stripped) so cosmetic checkout differences do not defeat deduplication.
func Compute(content, backend string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(normalize(content)))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// normalize canonicalizes content for fingerprinting.
func normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
