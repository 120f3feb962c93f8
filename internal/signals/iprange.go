package signals

import (
	"net"
	"strings"

	"github.com/atomlessAK/shuma-gorath/internal/config"
)

// IPRangeAction is the per-rule action a matched CIDR range carries.
type IPRangeAction string

const (
	IPRangeAllow       IPRangeAction = "Allow"
	IPRangeForbidden403 IPRangeAction = "Forbidden403"
	IPRangeRedirect    IPRangeAction = "Redirect"
	IPRangeMaze        IPRangeAction = "Maze"
	IPRangeChallenge   IPRangeAction = "Challenge"
	IPRangeCustom      IPRangeAction = "Custom"
)

// MatchIPRange returns the first configured rule whose CIDR contains ip, in
// configured order: an exact-match-then-CIDR-parse loop over trimmed rule
// entries, carrying a per-rule action instead of a single boolean allow/deny.
func MatchIPRange(ip string, rules []config.IPRangeRule) (config.IPRangeRule, bool) {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return config.IPRangeRule{}, false
	}
	for _, rule := range rules {
		entry := strings.TrimSpace(strings.SplitN(rule.CIDR, "#", 2)[0])
		if entry == "" {
			continue
		}
		if entry == ip {
			return rule, true
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			continue
		}
		if network.Contains(addr) {
			return rule, true
		}
	}
	return config.IPRangeRule{}, false
}
