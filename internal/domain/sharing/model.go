package sharing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// ShareToken maps to the share_tokens table. Scope is the set of record
// categories the token grants access to.
type ShareToken struct {
	ID        int64     `db:"id" json:"id"`
	PatientID int64     `db:"patient_id" json:"patient_id"`
	Token     string    `db:"token" json:"token"`
	Scope     []string  `db:"scope" json:"scope"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *ShareToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AccessLogEntry maps to the access_logs table joined with its token. The
// log is append-only; entries are never edited or deleted. Token and Scope
// are populated on reads.
type AccessLogEntry struct {
	ID           int64     `db:"id" json:"id"`
	TokenID      int64     `db:"token_id" json:"token_id"`
	ViewerIP     string    `db:"viewer_ip" json:"viewer_ip"`
	ProviderName string    `db:"provider_name" json:"provider_name"`
	ProviderOrg  *string   `db:"provider_org" json:"provider_org"`
	AccessedAt   time.Time `db:"accessed_at" json:"accessed_at"`
	Token        string    `db:"token" json:"token"`
	Scope        []string  `db:"scope" json:"scope"`
}

// NewTokenString returns a fresh share token value: 32 random bytes encoded
// as URL-safe base64 without padding.
func NewTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
