// Package signals implements the independent bot-detection evaluators:
// honeypot path match, geo classification, IP-range match, JS-verification
// marker, browser-version gate, fingerprint tier, and the botness
// aggregator that composes them.
package signals

import "strings"

// IsHoneypot is an exact path match against the configured honeypot list.
func IsHoneypot(path string, honeypots []string) bool {
	for _, h := range honeypots {
		if strings.TrimSpace(h) == path {
			return true
		}
	}
	return false
}
