package httpapi

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atomlessAK/shuma-gorath/internal/maze"
	"github.com/atomlessAK/shuma-gorath/internal/policy"
	"github.com/atomlessAK/shuma-gorath/internal/signals"
)

// forwardedSecretHeader carries the shared secret that must match
// SHUMA_FORWARDED_IP_SECRET before x-forwarded-for/x-geo-country are
// trusted.
const forwardedSecretHeader = "X-Shuma-Forward-Secret"

func headersTrusted(c *gin.Context, forwardedIPSecret string) bool {
	if strings.TrimSpace(forwardedIPSecret) == "" {
		return false
	}
	presented := c.GetHeader(forwardedSecretHeader)
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(forwardedIPSecret)) == 1
}

func clientIP(c *gin.Context, trusted bool) string {
	if trusted {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if first := strings.TrimSpace(parts[0]); first != "" {
				return first
			}
		}
	}
	return c.ClientIP()
}

func mazeTokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(maze.TraversalCookieName); err == nil && token != "" {
		return token
	}
	return c.Query("mt")
}

// buildRequest assembles a policy.Request from the live gin context, the
// single conversion point every route that feeds into Pipeline.Evaluate or
// the standalone challenge/not-a-bot/maze constructors goes through.
func (s *Server) buildRequest(c *gin.Context) policy.Request {
	trusted := headersTrusted(c, s.Secrets.ForwardedIPSecret)
	jsMarker, _ := c.Cookie(signals.JSMarkerCookieName)
	return policy.Request{
		Method:         c.Request.Method,
		Path:           c.Request.URL.Path,
		IP:             clientIP(c, trusted),
		UserAgent:      c.Request.UserAgent(),
		HeadersTrusted: trusted,
		GeoCountryRaw:  c.GetHeader("X-Geo-Country"),
		MazeToken:      mazeTokenFromRequest(c),
		JSMarkerCookie: jsMarker,
		Now:            time.Now().Unix(),
	}
}

// applyResponse writes a policy.Response to the live gin context, including
// every Set-Cookie header it carries verbatim (already-formed "name=value"
// pairs from the signal packages, not gin's cookie builder, since the
// attribute set — HttpOnly, SameSite=Strict, Max-Age, path=/ — is fixed and
// easiest to keep adjacent to where each token is minted).
func applyResponse(c *gin.Context, resp policy.Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	for _, cookie := range resp.SetCookies {
		c.Header("Set-Cookie", cookie)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(resp.Status, contentType, []byte(resp.Body))
}

func setSignedCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.Header("Set-Cookie", name+"="+value+"; HttpOnly; SameSite=Strict; Max-Age="+itoa(int(ttl.Seconds()))+"; path=/")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
