package xdr

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	headerAuthID    = "x-xdr-auth-id"
	headerNonce     = "x-xdr-nonce"
	headerTimestamp = "x-xdr-timestamp"
)

// sign sets the authentication headers. Standard keys are sent as-is;
// advanced keys send sha256(key + nonce + timestamp) so the secret never
// travels on the wire.
func (c *Client) sign(h http.Header) {
	h.Set(headerAuthID, c.apiKeyID)
	if !c.advanced {
		h.Set("Authorization", c.apiKey)
		return
	}
	nonce := newNonce()
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	h.Set(headerNonce, nonce)
	h.Set(headerTimestamp, timestamp)
	h.Set("Authorization", AdvancedAuthHash(c.apiKey, nonce, timestamp))
}

// AdvancedAuthHash returns the Authorization value for advanced API keys.
func AdvancedAuthHash(apiKey, nonce, timestamp string) string {
	sum := sha256.Sum256([]byte(apiKey + nonce + timestamp))
	return hex.EncodeToString(sum[:])
}

// newNonce returns 64 random hex characters.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
