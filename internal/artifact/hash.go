package artifact

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the sha256 hex digest of content. The digest is the
// stable identity used for batch deduplication and sync drift detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
