package httpapi

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/atomlessAK/shuma-gorath/internal/admin"
	"github.com/atomlessAK/shuma-gorath/internal/enforcement"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/signals"
	"github.com/atomlessAK/shuma-gorath/internal/validate"
)

// handleFingerprintReport accepts the posted browser fingerprint signal
//, classifies it through
// the FingerprintBackend, and bans outright on a Strong verdict — the one
// signal strong enough to skip the challenge/maze escalation ladder
// entirely, matching how the honeypot and rate-limit branches in
// internal/policy ban directly rather than escalating.
func (s *Server) handleFingerprintReport(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(validate.MaxCDPReportBytes)))
	if err != nil {
		c.Data(400, "text/plain; charset=utf-8", nil)
		return
	}
	var report signals.FingerprintReport
	if err := json.Unmarshal(body, &report); err != nil {
		c.Data(400, "text/plain; charset=utf-8", []byte("bad request"))
		return
	}

	req := s.buildRequest(c)
	tier := s.Pipeline.Fingerprints.Classify(report, s.Config.FingerprintThreshold)

	if tier == signals.FingerprintStrong && s.Config.FingerprintMode.EnforceEnabled() {
		ipBucket := ipident.BucketIP(req.IP)
		reason := "fingerprint"
		if s.Config.TestMode {
			s.Metrics.IncTestModeAction(reason)
		} else {
			enforcement.BanIPWithFingerprint(c.Request.Context(), s.Store, s.Config.SiteID, ipBucket, reason, s.Config.GetBanDuration(reason), &enforcement.BanFingerprint{
				Score:   &report.AggregateScore,
				Signals: []string{"fingerprint"},
			})
			s.Metrics.IncBan(reason)
			s.Events.Record(c.Request.Context(), admin.EventLogEntry{
				ID:     newOperationID(),
				Ts:     admin.NowTS(),
				Event:  admin.EventBan,
				IP:     req.IP,
				Reason: reason,
			})
		}
	}
	c.JSON(200, gin.H{"tier": tier})
}
