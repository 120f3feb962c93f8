// Package validate is the shared input-validation boundary used by every
// submit handler (challenge, not-a-bot, fingerprint report, maze
// issue-links).
package validate

import (
	"net"
	"net/url"
	"strings"
	"unicode"
)

// Body size ceilings for the various submit endpoints.
const (
	MaxAdminJSONBytes    = 64 * 1024
	MaxCDPReportBytes    = 16 * 1024
	MaxPoWVerifyBytes    = 8 * 1024
	MaxChallengeFormBytes = 8 * 1024
	MaxBanReasonLen      = 120
	MaxCheckNameLen      = 32
	MaxNonceLen          = 512
	MaxSeedTokenLen      = 4096
	MaxReturnToLen       = 512
)

var isoAlpha2 = buildISOAlpha2()

func buildISOAlpha2() map[string]bool {
	codes := strings.Fields(`
AD AE AF AG AI AL AM AO AQ AR AS AT AU AW AX AZ BA BB BD BE BF BG BH BI BJ BL
BM BN BO BQ BR BS BT BV BW BY BZ CA CC CD CF CG CH CI CK CL CM CN CO CR CU CV
CW CX CY CZ DE DJ DK DM DO DZ EC EE EG EH ER ES ET FI FJ FK FM FO FR GA GB GD
GE GF GG GH GI GL GM GN GP GQ GR GS GT GU GW GY HK HM HN HR HT HU ID IE IL IM
IN IO IQ IR IS IT JE JM JO JP KE KG KH KI KM KN KP KR KW KY KZ LA LB LC LI LK
LR LS LT LU LV LY MA MC MD ME MF MG MH MK ML MM MN MO MP MQ MR MS MT MU MV MW
MX MY MZ NA NC NE NF NG NI NL NO NP NR NU NZ OM PA PE PF PG PH PK PL PM PN PR
PS PT PW PY QA RE RO RS RU RW SA SB SC SD SE SG SH SI SJ SK SL SM SN SO SR SS
ST SV SX SY SZ TC TD TF TG TH TJ TK TL TM TN TO TR TT TV TW TZ UA UG UM US UY
UZ VA VC VE VG VI VN VU WF WS YE YT ZA ZM ZW`)
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

// EnforceBodySize returns false if body exceeds maxBytes.
func EnforceBodySize(body []byte, maxBytes int) bool {
	return len(body) <= maxBytes
}

// NormalizeCountryCodeISO validates and upper-cases a 2-letter ISO-3166-1
// alpha-2 code, or returns ("", false) if invalid/unknown.
func NormalizeCountryCodeISO(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != 2 {
		return "", false
	}
	for _, r := range trimmed {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return "", false
		}
	}
	upper := strings.ToUpper(trimmed)
	if !isoAlpha2[upper] {
		return "", false
	}
	return upper, true
}

// ParseIPAddr returns the canonical string form of a parsed IP, or ("",
// false) if input doesn't parse.
func ParseIPAddr(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	ip := net.ParseIP(trimmed)
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}

// SanitizeAdminReason normalizes an admin-supplied ban reason: empty becomes
// "admin_ban", overlong or control-character-bearing input is rejected.
func SanitizeAdminReason(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "admin_ban", true
	}
	if len(trimmed) > MaxBanReasonLen {
		return "", false
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	return trimmed, true
}

// SanitizeCheckName lower-cases and validates a check name against
// [a-z0-9_:-]+, length <= MaxCheckNameLen.
func SanitizeCheckName(input string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(input))
	if lowered == "" || len(lowered) > MaxCheckNameLen {
		return "", false
	}
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == ':':
		default:
			return "", false
		}
	}
	return lowered, true
}

func isTokenCharset(s string, maxLen int) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '+' || r == '/' || r == '=':
		default:
			return false
		}
	}
	return true
}

// ValidateNonce checks a nonce against the base64url-ish token charset.
func ValidateNonce(nonce string) bool {
	return isTokenCharset(nonce, MaxNonceLen)
}

// ValidateSeedToken checks a seed token (same charset as a nonce plus '.').
func ValidateSeedToken(seed string) bool {
	if seed == "" || len(seed) > MaxSeedTokenLen {
		return false
	}
	for _, r := range seed {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '+' || r == '/' || r == '=' || r == '.':
		default:
			return false
		}
	}
	return true
}

// NormalizeReturnTo validates and normalizes an internal redirect path:
// rejects empty, non-slash-leading, protocol-relative ("//..."), self-route,
// and overlong paths.
func NormalizeReturnTo(raw, selfRoute string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > MaxReturnToLen {
		return "", false
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}
	if strings.HasPrefix(trimmed, "//") {
		return "", false
	}
	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" {
		return "", false
	}
	if trimmed == selfRoute {
		return "", false
	}
	return trimmed, true
}
