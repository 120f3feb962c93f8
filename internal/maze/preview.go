package maze

import (
	"strings"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/config"
)

const (
	defaultPreviewPath  = "/maze/preview"
	previewSiteID       = "admin-preview"
	previewIPBucket     = "admin-preview-ip"
	previewUABucket     = "admin-preview-ua"
	previewChainNonce   = "admin-preview"
)

func isSafePreviewPath(path string) bool {
	if path == "" || len(path) > 256 {
		return false
	}
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '/' || r == '-' || r == '_' || r == '.' || r == '~':
		default:
			return false
		}
	}
	return true
}

// NormalizePreviewPath only honors an admin-supplied path when it's both
// maze-shaped and filesystem-safe; anything else falls back to the default
// preview path.
func NormalizePreviewPath(requestedPath string) string {
	candidate := strings.TrimSpace(requestedPath)
	if candidate == "" {
		return defaultPreviewPath
	}
	pathOnly := candidate
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		pathOnly = candidate[:idx]
	}
	if !IsMazePath(pathOnly) || !isSafePreviewPath(pathOnly) {
		return defaultPreviewPath
	}
	return pathOnly
}

// RenderAdminPreview renders through the same deterministic page generator
// used for live traffic — same seed derivation, same non-operational
// guarantee: no token, no PoW marker, no covert-decoy marker ever appears
// in a preview.
func RenderAdminPreview(cfg *config.Config, secrets config.Secrets, requestedPath string) string {
	currentPath := NormalizePreviewPath(requestedPath)

	window := cfg.MazeEntropyWindow
	if window < 1 {
		window = 1
	}
	now := time.Now().Unix()
	entropyBucket := now / int64(window)

	// Entropy rotates slowly so a repeated admin preview of the same path
	// stays stable within a window, same as the live serving path.
	entropy := EntropySeed(secrets.MazePreviewKey(), previewSiteID, previewIPBucket, previewUABucket, currentPath, entropyBucket, previewChainNonce)

	return GeneratePage(PageSeed(currentPath, entropy), currentPath, DefaultConfig())
}
