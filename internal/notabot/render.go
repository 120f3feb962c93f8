package notabot

import (
	"fmt"
	"strings"
)

// RenderPage renders the minimal not-a-bot checkbox page: a single checkbox
// control, a hidden seed field, and a telemetry field populated by the
// client's interaction-tracking script (out of scope here). Constant-string
// template, same design note as challenge.RenderPage.
func RenderPage(seedToken, returnTo string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Verify you're not a bot</title></head><body>\n")
	b.WriteString(fmt.Sprintf("<form method='POST' action='/challenge/not-a-bot-checkbox'>\n"))
	b.WriteString(fmt.Sprintf("<input type='hidden' name='seed' value='%s'>\n", seedToken))
	b.WriteString(fmt.Sprintf("<input type='hidden' name='return_to' value='%s'>\n", returnTo))
	b.WriteString("<input type='hidden' name='telemetry' value=''>\n")
	b.WriteString("<label><input type='checkbox' name='not_a_bot' id='not_a_bot'> I'm not a bot</label>\n")
	b.WriteString("<button type='submit'>Continue</button>\n</form>\n</body></html>")
	return b.String()
}

// BuildSeed assembles a fresh signed not-a-bot seed for GET /challenge/not-a-bot-checkbox.
func BuildSeed(operationID, ipBucket, uaBucket, pathClass, returnTo string, issuedAt, ttlSeconds int64) *Seed {
	return &Seed{
		OperationID:  operationID,
		FlowID:       "not_a_bot",
		StepID:       "not_a_bot_submit",
		StepIndex:    2,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt + ttlSeconds,
		TokenVersion: 1,
		IPBucket:     ipBucket,
		UABucket:     uaBucket,
		PathClass:    pathClass,
		ReturnTo:     returnTo,
	}
}
