package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// AnonymizeSession derives a stable, non-reversible owner key from an
// anonymous session identifier. Raw session IDs never reach the usage
// tables; the same session always maps to the same key so daily
// aggregates stay keyed correctly.
func AnonymizeSession(secret, sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}
