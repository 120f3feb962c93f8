package maze

import (
	"context"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
)

// Page is the fully-formed response for a maze request: rendered HTML plus
// the signed traversal token for the next hop in the chain.
type Page struct {
	HTML  string
	Token string
}

// minuteBucket quantizes now into the configured entropy rotation window
// (seconds), falling back to a 60-second window when unconfigured.
func minuteBucket(cfg *config.Config, now int64) int64 {
	window := int64(cfg.MazeEntropyWindow)
	if window < 1 {
		window = 60
	}
	return now / window
}

// ServeRoot issues the first traversal token for a freshly-entered maze
// (no parent token presented) and renders its page.
func ServeRoot(cfg *config.Config, mazeSecret, path, ip, userAgent string, now int64) (Page, error) {
	ipBucket := ipident.BucketIP(ip)
	uaBucket := UABucket(userAgent)
	pathPrefix := "/maze/"
	if len(path) >= 6 && path[:6] == "/trap/" {
		pathPrefix = "/trap/"
	}
	nonce := FlowIDFrom(ipBucket, uaBucket, path, now)
	child := IssueChildToken(nil, path, pathPrefix, ipBucket, uaBucket, int64(cfg.MazeTokenTTLSeconds), cfg.MazeMaxDepth, cfg.MazeBranchBudget, nonce, 0, now)
	signed, err := Sign(child, mazeSecret)
	if err != nil {
		return Page{}, err
	}
	entropy := EntropySeed(mazeSecret, cfg.SiteID, ipBucket, uaBucket, path, minuteBucket(cfg, now), nonce)
	html := GeneratePage(PageSeed(path, entropy), path, DefaultConfig())
	return Page{HTML: html, Token: signed}, nil
}

// Advance verifies the presented parent token, binds it to the live
// request, and issues the next-hop child token for path. A mismatched or
// expired parent token is not fatal — the visitor simply gets treated as a
// fresh root entry, since the maze has no reason to ever reject traffic
// outright.
func Advance(cfg *config.Config, mazeSecret, rawParentToken, path, ip, userAgent string, now int64) (Page, error) {
	ipBucket := ipident.BucketIP(ip)
	uaBucket := UABucket(userAgent)

	parent, err := Verify(rawParentToken, mazeSecret, nil)
	if err != nil || parent.IPBucket != ipBucket || parent.UABucket != uaBucket {
		return ServeRoot(cfg, mazeSecret, path, ip, userAgent, now)
	}

	pathPrefix := parent.PathPrefix
	nonce := parent.EntropyNonce
	child := IssueChildToken(parent, path, pathPrefix, ipBucket, uaBucket, int64(cfg.MazeTokenTTLSeconds), cfg.MazeMaxDepth, cfg.MazeBranchBudget, nonce, 0, now)
	signed, err := Sign(child, mazeSecret)
	if err != nil {
		return Page{}, err
	}
	entropy := EntropySeed(mazeSecret, cfg.SiteID, ipBucket, uaBucket, path, minuteBucket(cfg, now), nonce)
	html := GeneratePage(PageSeed(path, entropy), path, DefaultConfig())
	return Page{HTML: html, Token: signed}, nil
}

// CheckpointRequest is the body posted to /maze/checkpoint by the client
// script on page load.
type CheckpointRequest struct {
	Token            string `json:"token"`
	FlowID           string `json:"flow_id"`
	Depth            int    `json:"depth"`
	CheckpointReason string `json:"checkpoint_reason"`
}

func checkpointKey(flowID string) string {
	return "maze:checkpoint:" + flowID
}

// RecordCheckpoint verifies the token and persists a last-seen marker for
// the flow, used by observability to approximate maze dwell time per
// traversal chain.
func RecordCheckpoint(ctx context.Context, store kvstore.Store, mazeSecret string, req CheckpointRequest, now int64) error {
	token, err := Verify(req.Token, mazeSecret, &now)
	if err != nil {
		return err
	}
	ttl := time.Duration(token.ExpiresAt-now) * time.Second
	if ttl <= 0 {
		ttl = time.Second
	}
	return store.Set(ctx, checkpointKey(token.FlowID), []byte(req.CheckpointReason), ttl)
}

// IssueLinksRequest is the body posted to /maze/issue-links by the client
// worker once it has generated candidate paths locally.
type IssueLinksRequest struct {
	ParentToken     string   `json:"parent_token"`
	FlowID          string   `json:"flow_id"`
	EntropyNonce    string   `json:"entropy_nonce"`
	PathPrefix      string   `json:"path_prefix"`
	Seed            uint64   `json:"seed"`
	SeedSig         string   `json:"seed_sig"`
	HiddenCount     int      `json:"hidden_count"`
	SegmentLen      int      `json:"segment_len"`
	Candidates      []string `json:"candidates"`
}

// IssuedLink is one expanded hidden link handed back to the client.
type IssuedLink struct {
	Href          string `json:"href"`
	Text          string `json:"text"`
	PowDifficulty int    `json:"pow_difficulty,omitempty"`
}

// IssueLinks is the server side of issue-links: the expansion seed
// signature must match before any candidate paths are turned into signed
// maze hrefs, preventing a client from expanding links for a page it was
// never issued.
func IssueLinks(cfg *config.Config, mazeSecret string, req IssueLinksRequest, ip, userAgent string, now int64) ([]IssuedLink, bool) {
	if !VerifyExpansionSeedSignature(req.SeedSig, mazeSecret, req.FlowID, req.PathPrefix, req.EntropyNonce, 0, req.Seed, req.HiddenCount, req.SegmentLen) {
		return nil, false
	}
	parent, err := Verify(req.ParentToken, mazeSecret, &now)
	if err != nil {
		return nil, false
	}

	ipBucket := ipident.BucketIP(ip)
	uaBucket := UABucket(userAgent)
	out := make([]IssuedLink, 0, len(req.Candidates))
	for i, candidatePath := range req.Candidates {
		if i >= req.HiddenCount {
			break
		}
		child := IssueChildToken(parent, candidatePath, req.PathPrefix, ipBucket, uaBucket, int64(cfg.MazeTokenTTLSeconds), cfg.MazeMaxDepth, cfg.MazeBranchBudget, req.EntropyNonce, i+1, now)
		signed, err := Sign(child, mazeSecret)
		if err != nil {
			continue
		}
		out = append(out, IssuedLink{
			Href: candidatePath + "?mt=" + signed,
			Text: "detail",
		})
	}
	return out, true
}
