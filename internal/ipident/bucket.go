// Package ipident maps a raw client address to a coarse, cardinality-reduced
// bucket and derives the UA bucket.
package ipident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// nonIPBuckets bounds the hash-fallback bucket space for identifiers that
// don't parse as an IP address.
const nonIPBuckets = 4096

// BucketIP derives the coarse identity bucket for a raw address: /24 for
// IPv4, /64 for IPv6, or an "h"-prefixed hash bucket for anything else.
func BucketIP(addr string) string {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return hashBucket(addr)
	}
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}
	v6 := ip.To16()
	if v6 == nil {
		return hashBucket(addr)
	}
	masked := make(net.IP, net.IPv6len)
	copy(masked, v6)
	for i := 8; i < net.IPv6len; i++ {
		masked[i] = 0
	}
	return masked.String()
}

func hashBucket(s string) string {
	sum := sha256.Sum256([]byte(s))
	n := uint64(sum[0])<<24 | uint64(sum[1])<<16 | uint64(sum[2])<<8 | uint64(sum[3])
	return fmt.Sprintf("h%d", n%nonIPBuckets)
}

// BucketUA derives the first 16 lowercase hex characters of
// SHA-256(trimmed-UA), or "unknown" for an empty user agent.
func BucketUA(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(sum[:])[:16]
}
