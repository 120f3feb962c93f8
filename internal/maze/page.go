package maze

import (
	"fmt"
	"strings"
)

// Config bounds how many links/paragraphs a generated page carries.
type Config struct {
	MinLinks      int
	MaxLinks      int
	MinParagraphs int
	MaxParagraphs int
}

// DefaultConfig returns the standard link/paragraph bounds.
func DefaultConfig() Config {
	return Config{MinLinks: 8, MaxLinks: 15, MinParagraphs: 3, MaxParagraphs: 6}
}

// IsMazePath reports whether path falls under the tarpit: both /trap/ and
// /maze/ prefixes are maze territory.
func IsMazePath(path string) bool {
	return strings.HasPrefix(path, "/trap/") || strings.HasPrefix(path, "/maze/")
}

const pageStyle = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 12px;
            box-shadow: 0 20px 60px rgba(0,0,0,0.3);
            overflow: hidden;
        }
        header {
            background: linear-gradient(90deg, #1a1a2e 0%, #16213e 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 1.8rem; font-weight: 600; }
        .breadcrumb { color: #888; font-size: 0.9rem; margin-top: 8px; }
        .content { padding: 40px; }
        .description {
            color: #555;
            line-height: 1.8;
            margin-bottom: 30px;
            padding: 20px;
            background: #f8f9fa;
            border-radius: 8px;
            border-left: 4px solid #667eea;
        }
        .nav-grid {
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(280px, 1fr));
            gap: 20px;
            margin-top: 30px;
        }
        .nav-card {
            background: white;
            border: 1px solid #e0e0e0;
            border-radius: 8px;
            padding: 20px;
            text-decoration: none;
            color: inherit;
            display: block;
        }
        .nav-card h3 { color: #1a1a2e; font-size: 1rem; margin-bottom: 8px; }
        .nav-card p { color: #666; font-size: 0.85rem; line-height: 1.5; }
        .nav-card .arrow { color: #667eea; margin-top: 10px; font-size: 0.9rem; }
        footer {
            background: #f8f9fa;
            padding: 20px 40px;
            color: #888;
            font-size: 0.85rem;
            border-top: 1px solid #e0e0e0;
        }
`

// GeneratePage is a deterministic function of (seed, path, config): the
// same seed and path always produce byte-identical HTML, which is what lets
// the maze serve infinite pages without persisting any of them. Callers
// derive seed with PageSeed so a given path still reads as internally
// consistent while varying by visitor and rotating across time windows;
// path itself only shapes the /trap/ vs /maze/ link prefix here.
func GeneratePage(seed uint64, path string, cfg Config) string {
	rng := NewSeededRng(seed)

	title := GenerateTitle(rng)
	numLinks := rng.Range(cfg.MinLinks, cfg.MaxLinks)
	numParagraphs := rng.Range(cfg.MinParagraphs, cfg.MaxParagraphs)

	dept := rng.Pick(departments)
	breadcrumbNoun := capitalize(rng.Pick(nouns))

	basePrefix := "/maze/"
	if strings.HasPrefix(path, "/trap/") {
		basePrefix = "/trap/"
	}

	var html strings.Builder
	fmt.Fprintf(&html, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>%s</style>
</head>
<body>
    <div class="container">
        <header>
            <h1>%s</h1>
            <div class="breadcrumb">Portal &gt; %s &gt; %s Management</div>
        </header>
        <div class="content">
`, title, pageStyle, title, dept, breadcrumbNoun)

	for i := 0; i < numParagraphs; i++ {
		fmt.Fprintf(&html, "            <p class=\"description\">%s</p>\n", GenerateParagraph(rng))
	}

	html.WriteString("            <div class=\"nav-grid\">\n")
	for i := 0; i < numLinks; i++ {
		linkPath := basePrefix + GeneratePathSegment(rng, 16)
		linkText := GenerateLinkText(rng)
		linkDesc := GenerateParagraph(rng)
		shortDesc := linkDesc
		if len(shortDesc) > 80 {
			shortDesc = shortDesc[:80]
		}
		fmt.Fprintf(&html, "                <a href=\"%s\" class=\"nav-card\">\n"+
			"                    <h3>%s</h3>\n"+
			"                    <p>%s...</p>\n"+
			"                    <div class=\"arrow\">Access &rarr;</div>\n"+
			"                </a>\n", linkPath, linkText, shortDesc)
	}
	html.WriteString("            </div>\n")
	html.WriteString("        </div>\n")

	footerDate := GenerateFakeDate(rng)
	sessionID := GeneratePathSegment(rng, 8)
	fmt.Fprintf(&html, `        <footer>
            <p>Internal Portal &bull; Last updated: %s &bull; Session ID: %s</p>
        </footer>
    </div>
</body>
</html>`, footerDate, sessionID)

	return html.String()
}
