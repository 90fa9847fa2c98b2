package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/toolgate/toolgate/pkg/security"
)

// Fingerprint returns a stable hash of a (tool, arguments) pair. Identical
// calls always produce the same fingerprint, which keys the approval cache.
func Fingerprint(toolName string, arguments map[string]interface{}) string {
	sum := sha256.Sum256([]byte(toolName + "\x00" + security.CanonicalArguments(arguments)))
	return hex.EncodeToString(sum[:])
}

// requestID derives a content-based request id from the tool, canonical
// arguments, user, and creation instant. The timestamp component keeps two
// identical calls at different instants from colliding.
func requestID(toolName string, arguments map[string]interface{}, userID string, createdAt time.Time) string {
	payload := fmt.Sprintf("%s\x00%s\x00%s\x00%d",
		toolName, security.CanonicalArguments(arguments), userID, createdAt.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}
