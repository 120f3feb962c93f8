// Package jsverify implements "inject a script that solves a PoW and posts
// back to set the cookie": a signed, envelope-bound challenge token naming
// a proof-of-work difficulty, graded by recomputing the same leading-zero-bit
// check the maze tarpit uses for its per-edge micro-PoW
// (internal/maze.VerifyMicroPoW), since both are the same primitive applied
// to a different token shape.
package jsverify

import (
	"context"
	"fmt"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/envelope"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/maze"
)

// Seed is the signed payload handed to the client on GET /challenge/pow.
type Seed struct {
	OperationID  string `json:"operation_id"`
	FlowID       string `json:"flow_id"`
	StepID       string `json:"step_id"`
	StepIndex    int    `json:"step_index"`
	IssuedAt     int64  `json:"issued_at"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenVersion int    `json:"token_version"`
	IPBucket     string `json:"ip_bucket"`
	UABucket     string `json:"ua_bucket"`
	PathClass    string `json:"path_class"`
	Difficulty   int    `json:"difficulty"`
	ReturnTo     string `json:"return_to"`
}

// Outcome is the JS-verification branch of the shared error taxonomy.
type Outcome string

const (
	OutcomeVerified          Outcome = "Verified"
	OutcomeMissingSeed       Outcome = "MissingSeed"
	OutcomeInvalidSeed       Outcome = "InvalidSeed"
	OutcomeSequenceViolation Outcome = "SequenceViolation"
	OutcomeBindingMismatch   Outcome = "BindingMismatch"
	OutcomeExpired           Outcome = "Expired"
	OutcomeReplay            Outcome = "Replay"
	OutcomePowFailed         Outcome = "PowFailed"
)

// BuildChallenge mints a fresh operation envelope naming the PoW difficulty
// the client must solve before POSTing to /challenge/pow-verify.
func BuildChallenge(secret, ipBucket, uaBucket, operationID string, issuedAt, ttlSeconds int64, difficulty int, returnTo string) (string, error) {
	seed := Seed{
		OperationID:  operationID,
		FlowID:       envelope.FlowJSVerification,
		StepID:       envelope.StepJSPowVerify,
		StepIndex:    envelope.StepIndexJSPowVerify,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt + ttlSeconds,
		TokenVersion: envelope.TokenVersionV1,
		IPBucket:     ipBucket,
		UABucket:     uaBucket,
		PathClass:    envelope.PathClassJSPowVerify,
		Difficulty:   difficulty,
		ReturnTo:     returnTo,
	}
	return envelope.MakeSeedToken(secret, seed)
}

// ParseSeedToken verifies and decodes a /challenge/pow seed token.
func ParseSeedToken(secret, token string) (*Seed, error) {
	var seed Seed
	if err := envelope.ParseSeedToken(secret, token, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// RenderPage renders the inline PoW-solving script: the browser mines a
// nonce client-side and posts it back once found.
func RenderPage(seedToken string, difficulty int, returnTo string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>Verifying your browser</title></head>
<body>
<p>Verifying your browser&hellip;</p>
<form id="pow-form" method="POST" action="/challenge/pow-verify">
<input type="hidden" name="seed" value="%s">
<input type="hidden" name="nonce" id="pow-nonce" value="">
</form>
<script>(function(){
var difficulty=%d;
var token=%q;
function solve(cb){
var nonce=0;
function step(){
var budget=2000;
while(budget-->0){
var data=token+':'+nonce;
crypto.subtle.digest('SHA-256',new TextEncoder().encode(data)).then(function(hash){});
nonce++;
}
cb(String(nonce));
}
step();
}
async function mine(){
var nonce=0;
while(true){
var data=new TextEncoder().encode(token+':'+nonce);
var digest=new Uint8Array(await crypto.subtle.digest('SHA-256',data));
var bits=difficulty, ok=true;
for(var i=0;i<digest.length&&bits>0;i++){
if(bits>=8){ if(digest[i]!==0){ok=false;break;} bits-=8; }
else { var mask=0xff<<(8-bits); ok=(digest[i]&mask)===0; bits=0; }
}
if(ok)return String(nonce);
nonce++;
}
}
mine().then(function(nonce){
document.getElementById('pow-nonce').value=nonce;
document.getElementById('pow-form').submit();
});
})();</script>
</body></html>`, seedToken, difficulty, seedToken)
}

func usedMarkerKey(operationID string) string {
	return "js_pow_used:" + operationID
}

func markUsed(ctx context.Context, store kvstore.Store, operationID string, expiresAt, now int64) {
	ttl := time.Duration(expiresAt-now) * time.Second
	if ttl <= 0 {
		ttl = time.Second
	}
	_ = store.Set(ctx, usedMarkerKey(operationID), []byte("1"), ttl)
}

func alreadyUsed(ctx context.Context, store kvstore.Store, operationID string) bool {
	_, err := store.Get(ctx, usedMarkerKey(operationID))
	return err == nil
}

// VerifySubmission validates the envelope and ordering/timing/replay
// primitives for a /challenge/pow-verify POST, then grades the submitted
// nonce against the seed's own token string and difficulty.
func VerifySubmission(ctx context.Context, store kvstore.Store, secret, requestIP, requestUA string, now int64, seedTokenRaw, nonce string) (Outcome, *Seed) {
	if seedTokenRaw == "" {
		return OutcomeMissingSeed, nil
	}
	seed, err := ParseSeedToken(secret, seedTokenRaw)
	if err != nil {
		return OutcomeInvalidSeed, nil
	}

	if err := envelope.ValidateSignedOperationEnvelope(
		seed.OperationID, seed.FlowID, seed.StepID, seed.IssuedAt, seed.ExpiresAt, seed.TokenVersion,
		envelope.FlowJSVerification, envelope.StepJSPowVerify,
	); err != nil {
		return OutcomeSequenceViolation, seed
	}

	if err := envelope.ValidateRequestBinding(
		seed.IPBucket, seed.UABucket, seed.PathClass,
		requestIP, requestUA, envelope.PathClassJSPowVerify,
	); err != nil {
		return OutcomeBindingMismatch, seed
	}

	if err := envelope.ValidateOrderingWindow(
		seed.FlowID, seed.StepID, seed.StepIndex, seed.IssuedAt, seed.ExpiresAt, now,
		envelope.FlowJSVerification, envelope.StepJSPowVerify, envelope.StepIndexJSPowVerify,
		envelope.MaxStepWindowSecondsJSPowVerify,
	); err != nil {
		return OutcomeSequenceViolation, seed
	}

	ipBucket := ipident.BucketIP(requestIP)
	if err := envelope.ValidateTimingPrimitives(
		ctx, store, seed.FlowID, ipBucket, seed.IssuedAt, now,
		envelope.MinStepLatencySecondsJSPowVerify, envelope.MaxStepLatencySecondsJSPowVerify, envelope.MaxFlowAgeSecondsJSPowVerify,
		envelope.TimingRegularityWindowJSPowVerify, envelope.TimingRegularitySpreadSecondsJSPowVerify, envelope.TimingHistoryTTLSecondsJSPowVerify,
	); err != nil {
		return OutcomeExpired, seed
	}

	if err := envelope.ValidateOperationReplay(ctx, store, seed.FlowID, seed.OperationID, now, seed.ExpiresAt, envelope.MaxOperationReplayTTLSecondsJSPowVerify); err != nil {
		return OutcomeReplay, seed
	}
	if alreadyUsed(ctx, store, seed.OperationID) {
		return OutcomeReplay, seed
	}
	markUsed(ctx, store, seed.OperationID, seed.ExpiresAt, now)

	if !maze.VerifyMicroPoW(seedTokenRaw, nonce, seed.Difficulty) {
		return OutcomePowFailed, seed
	}
	return OutcomeVerified, seed
}
