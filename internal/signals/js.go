package signals

import (
	"strings"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/envelope"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
)

// JSMarkerCookieName is the cookie set once a client completes the PoW
// verification round trip. It is deliberately distinct from the not-a-bot
// checkbox marker cookie: the two flows gate different challenges, so a
// client that has passed the PoW round trip shouldn't be treated as having
// passed the not-a-bot flow (or vice versa) just because one marker cookie
// happens to be present.
const JSMarkerCookieName = "shuma_js_verified"

// JSMarker is the signed envelope payload carried by JSMarkerCookieName.
type JSMarker struct {
	TokenVersion int    `json:"token_version"`
	IPBucket     string `json:"ip_bucket"`
	UABucket     string `json:"ua_bucket"`
	ExpiresAt    int64  `json:"expires_at"`
}

// MintJSMarker signs a fresh marker for the live request's buckets.
func MintJSMarker(secret, ip, ua string, ttl time.Duration) (string, error) {
	now := time.Now().Unix()
	marker := JSMarker{
		TokenVersion: envelope.TokenVersionV1,
		IPBucket:     ipident.BucketIP(ip),
		UABucket:     ipident.BucketUA(ua),
		ExpiresAt:    now + int64(ttl.Seconds()),
	}
	return envelope.MakeSeedToken(secret, marker)
}

// VerifyJSMarker parses and validates a marker cookie against the live
// request's recomputed buckets, mirroring js_verification's cookie check
// and the not-a-bot marker's same "valid only when both match live request
// buckets" rule.
func VerifyJSMarker(secret, cookieValue, ip, ua string) bool {
	if strings.TrimSpace(cookieValue) == "" {
		return false
	}
	var marker JSMarker
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

// NeedsJSVerificationWithWhitelist: a whitelisted browser (by UA substring)
// never needs JS verification; everyone else does until they carry a valid
// marker cookie.
func NeedsJSVerificationWithWhitelist(secret, cookieValue, ip, ua string, browserWhitelist []string) bool {
	if IsBrowserWhitelisted(ua, browserWhitelist) {
		return false
	}
	return !VerifyJSMarker(secret, cookieValue, ip, ua)
}
