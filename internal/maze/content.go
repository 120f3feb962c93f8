package maze

import (
	"fmt"
	"strings"
)

// Word lists and generators produce deterministic, seed-driven fake
// corporate-intranet copy used to fill maze pages.
var nouns = []string{
	"system", "data", "server", "network", "client", "database", "file", "user",
	"admin", "config", "backup", "report", "dashboard", "analytics", "service",
	"process", "resource", "module", "component", "interface", "protocol",
	"session", "transaction", "record", "entry", "request", "response", "cache",
	"storage", "cluster", "node", "instance", "container", "deployment",
	"pipeline", "workflow",
}

var verbs = []string{
	"configure", "manage", "update", "delete", "create", "view", "export",
	"import", "sync", "backup", "restore", "monitor", "analyze", "optimize",
	"validate", "process", "submit", "review", "approve", "deploy", "migrate",
	"transform",
}

var adjectives = []string{
	"advanced", "secure", "internal", "external", "primary", "secondary",
	"legacy", "updated", "archived", "active", "pending", "completed",
	"failed", "critical", "standard", "custom", "automated", "manual",
	"scheduled", "temporary", "permanent",
}

var departments = []string{
	"Sales", "Marketing", "Engineering", "HR", "Finance", "Operations",
	"Support", "IT", "Legal", "Compliance", "Security", "Development", "QA",
	"DevOps",
}

var months = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// GenerateTitle produces a deterministic fake page title from r.
func GenerateTitle(r *SeededRng) string {
	switch r.Next() % 4 {
	case 0:
		return fmt.Sprintf("%s %s Management", capitalize(r.Pick(adjectives)), capitalize(r.Pick(nouns)))
	case 1:
		return fmt.Sprintf("%s %s Portal", r.Pick(departments), capitalize(r.Pick(nouns)))
	case 2:
		return fmt.Sprintf("%s %s Dashboard", capitalize(r.Pick(adjectives)), capitalize(r.Pick(nouns)))
	default:
		return fmt.Sprintf("%s %s - %s Access", capitalize(r.Pick(verbs)), capitalize(r.Pick(nouns)), capitalize(r.Pick(adjectives)))
	}
}

// GenerateLinkText produces deterministic fake anchor text from r.
func GenerateLinkText(r *SeededRng) string {
	switch r.Next() % 7 {
	case 0:
		return fmt.Sprintf("%s %s", capitalize(r.Pick(verbs)), capitalize(r.Pick(nouns)))
	case 1:
		return fmt.Sprintf("%s %s Portal", r.Pick(departments), r.Pick(nouns))
	case 2:
		return fmt.Sprintf("%s %s Settings", capitalize(r.Pick(adjectives)), capitalize(r.Pick(nouns)))
	case 3:
		return fmt.Sprintf("View %s %s", capitalize(r.Pick(adjectives)), capitalize(r.Pick(nouns)))
	case 4:
		return fmt.Sprintf("%s Management", capitalize(r.Pick(nouns)))
	case 5:
		return fmt.Sprintf("%s Dashboard", r.Pick(departments))
	default:
		return fmt.Sprintf("%s %s Report", r.Pick(departments), r.Pick(nouns))
	}
}

// GenerateFakeDate produces a deterministic fake recent date from r.
func GenerateFakeDate(r *SeededRng) string {
	month := r.Pick(months)
	day := r.Range(1, 28)
	yearSuffix := r.Range(3, 6)
	return fmt.Sprintf("%s %d, 202%d", month, day, yearSuffix)
}

// GenerateParagraph produces a deterministic fake body paragraph from r.
func GenerateParagraph(r *SeededRng) string {
	switch r.Next() % 5 {
	case 0:
		return fmt.Sprintf(
			"The %s %s requires %s access to the %s %s. Please ensure all %s are properly configured before proceeding.",
			r.Pick(adjectives), r.Pick(nouns), r.Pick(adjectives), r.Pick(adjectives), r.Pick(nouns), r.Pick(nouns),
		)
	case 1:
		return fmt.Sprintf(
			"This %s allows you to %s the %s %s. All changes are logged and can be reviewed in the %s section.",
			r.Pick(nouns), r.Pick(verbs), r.Pick(adjectives), r.Pick(nouns), r.Pick(nouns),
		)
	case 2:
		return fmt.Sprintf(
			"Access to %s %s is restricted to %s personnel only. Contact %s for authorization requests.",
			r.Pick(adjectives), r.Pick(nouns), r.Pick(adjectives), r.Pick(departments),
		)
	case 3:
		noun1, noun2 := r.Pick(nouns), r.Pick(nouns)
		date := GenerateFakeDate(r)
		return fmt.Sprintf(
			"The %s %s was last updated on %s. Review the %s for recent changes and %s.",
			noun1, noun2, date, r.Pick(nouns), r.Pick(nouns),
		)
	default:
		return fmt.Sprintf(
			"Use this %s to %s %s across all %s. The %s will be %s automatically.",
			r.Pick(nouns), r.Pick(verbs), r.Pick(nouns), r.Pick(nouns), r.Pick(nouns), r.Pick(verbs),
		)
	}
}
