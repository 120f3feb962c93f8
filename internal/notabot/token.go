package notabot

import (
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/envelope"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
)

// MakeSeedToken mints a standard-base64 signed not-a-bot seed token.
func MakeSeedToken(secret string, seed *Seed) (string, error) {
	return envelope.MakeSeedToken(secret, seed)
}

// ParseSeedToken verifies and decodes a not-a-bot seed token.
func ParseSeedToken(secret, token string) (*Seed, error) {
	var seed Seed
	if err := envelope.ParseSeedToken(secret, token, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// MarkerCookieName is the cookie set on a Pass decision, letting the client
// revisit return_to without repeating the checkbox flow until it expires.
const MarkerCookieName = "shuma_not_a_bot"

// Marker is the signed payload carried by MarkerCookieName.
type Marker struct {
	TokenVersion int    `json:"token_version"`
	IPBucket     string `json:"ip_bucket"`
	UABucket     string `json:"ua_bucket"`
	ExpiresAt    int64  `json:"expires_at"`
}

// MintMarker signs a fresh not-a-bot marker for the live request's buckets.
func MintMarker(secret, ip, ua string, ttl time.Duration) (string, error) {
	now := time.Now().Unix()
	marker := Marker{
		TokenVersion: envelope.TokenVersionV1,
		IPBucket:     ipident.BucketIP(ip),
		UABucket:     ipident.BucketUA(ua),
		ExpiresAt:    now + int64(ttl.Seconds()),
	}
	return envelope.MakeSeedToken(secret, marker)
}

// VerifyMarker parses and validates a marker cookie against the live
// request's recomputed buckets.
func VerifyMarker(secret, cookieValue, ip, ua string) bool {
	if cookieValue == "" {
		return false
	}
	var marker Marker
	if err := envelope.ParseSeedToken(secret, cookieValue, &marker); err != nil {
		return false
	}
	if marker.TokenVersion != envelope.TokenVersionV1 {
		return false
	}
	if time.Now().Unix() > marker.ExpiresAt {
		return false
	}
	if marker.IPBucket != ipident.BucketIP(ip) {
		return false
	}
	if marker.UABucket != ipident.BucketUA(ua) {
		return false
	}
	return true
}
