package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// contextSeparator joins response texts before hashing. The unit separator
// control character does not occur in normal command output, so two
// adjacent responses can never collide with one longer response.
const contextSeparator = "\x1f"

// HashContext fingerprints an ordered list of prior response texts.
// An empty list returns the empty string, the sentinel for "no context".
// The hash is deterministic and order-sensitive: swapping two distinct
// responses produces a different fingerprint.
func HashContext(responses []string) string {
	if len(responses) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(responses, contextSeparator)))
	return hex.EncodeToString(sum[:])
}
