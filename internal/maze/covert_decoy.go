package maze

import (
	"fmt"
	"strings"

	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
)

const decoyMarker = `data-shuma-covert-decoy="1"`

var searchEngineUASubstrings = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
	"yandexbot", "facebot", "twitterbot", "linkedinbot",
}

func isSearchEngineUserAgent(cfg *config.Config, userAgent string) bool {
	if !cfg.RobotsAllowSearchEngines {
		return false
	}
	normalized := strings.ToLower(userAgent)
	for _, needle := range searchEngineUASubstrings {
		if strings.Contains(normalized, needle) {
			return true
		}
	}
	return false
}

func mediumSuspicionScore(cfg *config.Config, suspicionScore int) bool {
	return suspicionScore >= cfg.ChallengeRiskThreshold && suspicionScore < cfg.BotnessMazeThreshold
}

func isHTMLLikeResponse(contentType string, body []byte) bool {
	if contentType != "" {
		return strings.Contains(strings.ToLower(contentType), "text/html")
	}
	lower := strings.ToLower(string(body))
	return strings.HasPrefix(lower, "<html") || strings.HasPrefix(lower, "<!doctype html") || strings.Contains(lower, "<html")
}

func covertDecoyHref(cfg *config.Config, mazeSecret, ip, userAgent, requestPath string, now int64) string {
	ipBucket := ipident.BucketIP(ip)
	uaBucket := UABucket(userAgent)
	nonce := FlowIDFrom(ipBucket, uaBucket, requestPath, now)
	pathDigest := Digest(fmt.Sprintf("%s:%s:%d", requestPath, ipBucket, now))
	segment := pathDigest[:12]
	decoyPath := "/maze/decoy/" + segment
	child := IssueChildToken(nil, decoyPath, "/maze/", ipBucket, uaBucket, int64(cfg.MazeTokenTTLSeconds), cfg.MazeMaxDepth, cfg.MazeBranchBudget, nonce, 99, now)
	signed, _ := Sign(child, mazeSecret)
	return fmt.Sprintf("%s?mt=%s&dc=1", decoyPath, signed)
}

func injectDecoyHTML(html, href string) string {
	if strings.Contains(html, decoyMarker) {
		return html
	}
	decoy := fmt.Sprintf(
		`<div aria-hidden="true" %s style="position:absolute;left:-10000px;top:auto;width:1px;height:1px;overflow:hidden;">
<a href="%s" rel="nofollow" tabindex="-1">catalog index</a>
</div>`, decoyMarker, href)
	if idx := strings.LastIndex(html, "</body>"); idx >= 0 {
		return html[:idx] + decoy + html[idx:]
	}
	return html + "\n" + decoy
}

// MaybeInjectNonMazeDecoy handles GET responses outside the maze/admin/health
// surface: at medium suspicion
// (between the challenge and maze thresholds), get a hidden signed link
// stitched in before </body> — a low-cost tripwire that doesn't change what
// a real visitor sees.
func MaybeInjectNonMazeDecoy(
	cfg *config.Config,
	mazeSecret string,
	method, path string,
	ip, userAgent string,
	statusCode int,
	contentType string,
	body []byte,
	suspicionScore int,
	now int64,
) ([]byte, bool) {
	if !cfg.MazeEnabled || !cfg.MazeCovertDecoysEnabled {
		return body, false
	}
	if !mediumSuspicionScore(cfg, suspicionScore) {
		return body, false
	}
	if method != "GET" {
		return body, false
	}
	if IsMazePath(path) || strings.HasPrefix(path, "/admin") {
		return body, false
	}
	switch path {
	case "/health", "/metrics", "/robots.txt":
		return body, false
	}
	if isSearchEngineUserAgent(cfg, userAgent) {
		return body, false
	}
	if statusCode != 200 || !isHTMLLikeResponse(contentType, body) {
		return body, false
	}

	href := covertDecoyHref(cfg, mazeSecret, ip, userAgent, path, now)
	updated := injectDecoyHTML(string(body), href)
	return []byte(updated), true
}
