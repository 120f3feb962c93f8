package maze

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/envelope"
)

const tokenVersionV1 = 1

// TraversalCookieName carries the current-hop traversal token between maze
// page loads, letting the client's plain <a> navigation chain tokens without
// needing JS (the bootstrap script additionally posts it to /maze/checkpoint
// for dwell-time telemetry).
const TraversalCookieName = "shuma_mt"

// TraversalToken is the chained, signed state carried between maze pages.
type TraversalToken struct {
	Version      int    `json:"version"`
	OperationID  string `json:"operation_id"`
	FlowID       string `json:"flow_id"`
	PathPrefix   string `json:"path_prefix"`
	PathDigest   string `json:"path_digest"`
	IPBucket     string `json:"ip_bucket"`
	UABucket     string `json:"ua_bucket"`
	IssuedAt     int64  `json:"issued_at"`
	ExpiresAt    int64  `json:"expires_at"`
	Depth        int    `json:"depth"`
	BranchBudget int    `json:"branch_budget"`
	PrevDigest   string `json:"prev_digest"`
	EntropyNonce string `json:"entropy_nonce"`
	VariantID    int    `json:"variant_id"`
}

// TokenError classifies why a traversal token failed verification.
type TokenError string

const (
	TokenErrMissing           TokenError = "Missing"
	TokenErrMalformed         TokenError = "Malformed"
	TokenErrSignatureMismatch TokenError = "SignatureMismatch"
	TokenErrInvalidVersion    TokenError = "InvalidVersion"
	TokenErrExpired           TokenError = "Expired"
)

func (e TokenError) Error() string { return string(e) }

// Sign produces the signed, encoded form of a traversal token.
func Sign(token *TraversalToken, secret string) (string, error) {
	return envelope.MakeMazeToken(secret, token)
}

// Verify checks signature, version, and expiry; nowOverride lets tests
// control the expiry comparison instant.
func Verify(rawToken, secret string, nowOverride *int64) (*TraversalToken, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, TokenErrMissing
	}
	var token TraversalToken
	if err := envelope.ParseMazeToken(secret, rawToken, &token); err != nil {
		kind, _ := envelope.KindOf(err)
		switch kind {
		case envelope.ErrSignatureMismatch:
			return nil, TokenErrSignatureMismatch
		case envelope.ErrInvalidVersion:
			return nil, TokenErrMalformed
		default:
			return nil, TokenErrMalformed
		}
	}
	if token.Version != tokenVersionV1 {
		return nil, TokenErrInvalidVersion
	}
	now := time.Now().Unix()
	if nowOverride != nil {
		now = *nowOverride
	}
	if now > token.ExpiresAt {
		return nil, TokenErrExpired
	}
	return &token, nil
}

func hmacSign(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

func hexLower(b []byte) string { return hex.EncodeToString(b) }

// Digest returns the first 12 bytes (24 hex chars) of SHA-256(value), used
// throughout the maze package for path/link digests.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hexLower(sum[:12])
}

// UABucket digests a normalized user-agent string into a stable bucket.
func UABucket(userAgent string) string {
	normalized := strings.TrimSpace(userAgent)
	if normalized == "" {
		normalized = "unknown"
	}
	return Digest(normalized)
}

// FlowIDFrom derives a fresh flow id for the root of a maze traversal
// chain.
func FlowIDFrom(ipBucket, uaBucket, path string, now int64) string {
	h := sha256.New()
	h.Write([]byte(ipBucket))
	h.Write([]byte(uaBucket))
	h.Write([]byte(path))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(now))
	h.Write(buf[:])
	return hexLower(h.Sum(nil)[:12])
}

func operationID(targetPath, flowID string, depth int, now int64) string {
	h := sha256.New()
	h.Write([]byte(targetPath))
	h.Write([]byte(flowID))
	var depthBuf [2]byte
	binary.LittleEndian.PutUint16(depthBuf[:], uint16(depth))
	h.Write(depthBuf[:])
	var nowBuf [8]byte
	binary.LittleEndian.PutUint64(nowBuf[:], uint64(now))
	h.Write(nowBuf[:])
	return hexLower(h.Sum(nil)[:12])
}

// IssueChildToken issues the next-hop token: depth saturates at maxDepth,
// flow_id is inherited from the parent (or freshly derived at the root),
// and prev_digest chains to the parent's own (flow_id, operation_id).
func IssueChildToken(
	parent *TraversalToken,
	targetPath, pathPrefix, ipBucket, uaBucket string,
	ttlSeconds int64,
	maxDepth, branchBudget int,
	entropyNonce string,
	variantID int,
	now int64,
) *TraversalToken {
	parentDepth := 0
	flowID := FlowIDFrom(ipBucket, uaBucket, pathPrefix, now)
	prevDigest := Digest(pathPrefix)
	if parent != nil {
		parentDepth = parent.Depth
		flowID = parent.FlowID
		prevDigest = Digest(parent.FlowID + ":" + parent.OperationID)
	}
	depth := parentDepth + 1
	if depth > maxDepth {
		depth = maxDepth
	}

	return &TraversalToken{
		Version:      tokenVersionV1,
		OperationID:  operationID(targetPath, flowID, depth, now),
		FlowID:       flowID,
		PathPrefix:   pathPrefix,
		PathDigest:   Digest(targetPath),
		IPBucket:     ipBucket,
		UABucket:     uaBucket,
		IssuedAt:     now,
		ExpiresAt:    now + ttlSeconds,
		Depth:        depth,
		BranchBudget: branchBudget,
		PrevDigest:   prevDigest,
		EntropyNonce: entropyNonce,
		VariantID:    variantID,
	}
}

// VerifyMicroPoW checks that the client-supplied nonce makes
// SHA-256(rawToken || ":" || nonce) begin with at least
// difficulty leading zero bits. difficulty 0 (or an empty nonce paired with
// it) always passes — PoW is an optional per-edge cost.
func VerifyMicroPoW(rawToken, nonce string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if strings.TrimSpace(nonce) == "" {
		return false
	}
	h := sha256.New()
	h.Write([]byte(rawToken))
	h.Write([]byte(":"))
	h.Write([]byte(nonce))
	digest := h.Sum(nil)

	bitsRemaining := difficulty
	for _, b := range digest {
		if bitsRemaining <= 0 {
			return true
		}
		if bitsRemaining >= 8 {
			if b != 0 {
				return false
			}
			bitsRemaining -= 8
			continue
		}
		mask := byte(0xff << uint(8-bitsRemaining))
		return (b & mask) == 0
	}
	return true
}

// EntropySeed is an HMAC-derived seed scoped to a one-minute window so maze
// content varies slowly over time without being guessable from the token
// alone.
func EntropySeed(secret, siteID, ipBucket, uaBucket, path string, minuteBucket int64, chainNonce string) uint64 {
	payload := siteID + "|" + ipBucket + "|" + uaBucket + "|" + path + "|" +
		intToStr(minuteBucket) + "|" + chainNonce
	digest := hmacSign(secret, []byte(payload))
	return binary.LittleEndian.Uint64(digest[:8])
}

func intToStr(n int64) string {
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

func expansionSeedPayload(flowID, pathPrefix, entropyNonce string, depth int, seed uint64, hiddenCount, segmentLen int) string {
	return flowID + "|" + pathPrefix + "|" + entropyNonce + "|" +
		intToStr(int64(depth)) + "|" + intToStr(int64(seed)) + "|" +
		intToStr(int64(hiddenCount)) + "|" + intToStr(int64(segmentLen))
}

// SignExpansionSeed authenticates the (deterministic) parameters used to
// expand hidden links from a maze page, so a client can't replay a stale
// expansion against a new page.
func SignExpansionSeed(secret, flowID, pathPrefix, entropyNonce string, depth int, seed uint64, hiddenCount, segmentLen int) string {
	payload := expansionSeedPayload(flowID, pathPrefix, entropyNonce, depth, seed, hiddenCount, segmentLen)
	digest := hmacSign(secret, []byte(payload))
	return hexLower(digest[:16])
}

// VerifyExpansionSeedSignature checks a link-expansion signature in
// constant time.
func VerifyExpansionSeedSignature(signature, secret, flowID, pathPrefix, entropyNonce string, depth int, seed uint64, hiddenCount, segmentLen int) bool {
	if strings.TrimSpace(signature) == "" {
		return false
	}
	expected := SignExpansionSeed(secret, flowID, pathPrefix, entropyNonce, depth, seed, hiddenCount, segmentLen)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
