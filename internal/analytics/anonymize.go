package analytics

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Anonymizer derives pseudonymous tenant labels with HMAC-SHA256
// keyed per deployment. Labels are stable for a given key across
// processes. Distinct tenants can still collide: there are only a
// million labels.
type Anonymizer struct {
	key []byte
}

// NewAnonymizer returns an Anonymizer using a copy of key.
func NewAnonymizer(key []byte) *Anonymizer {
	return &Anonymizer{key: append([]byte(nil), key...)}
}

// Label returns "User_" followed by six decimal digits derived
// from tenantID.
func (a *Anonymizer) Label(tenantID string) string {
	var key []byte
	if a != nil {
		key = a.key
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(tenantID))
	sum := mac.Sum(nil)
	v := binary.BigEndian.Uint64(sum[:8]) % 1_000_000
	return fmt.Sprintf("User_%06d", v)
}
