package signals

import (
	"strings"

	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/validate"
)

// GeoPolicyRoute is the enforcement action a country code maps to.
type GeoPolicyRoute string

const (
	GeoRouteNone      GeoPolicyRoute = "none"
	GeoRouteAllow     GeoPolicyRoute = "allow"
	GeoRouteChallenge GeoPolicyRoute = "challenge"
	GeoRouteMaze      GeoPolicyRoute = "maze"
	GeoRouteBlock     GeoPolicyRoute = "block"
)

// GeoAssessment is the per-request geo evaluation result consumed by both
// the policy pipeline and the botness aggregator.
type GeoAssessment struct {
	HeadersTrusted bool
	Country        string // "" when unknown/untrusted
	Route          GeoPolicyRoute
	ScoredRisk      bool
}

// ExtractGeoCountry normalizes a forwarded x-geo-country header, but only
// when headersTrusted (the caller has already verified the forwarded-identity
// secret matches).
func ExtractGeoCountry(headersTrusted bool, rawHeader string) (string, bool) {
	if !headersTrusted {
		return "", false
	}
	return validate.NormalizeCountryCodeISO(strings.TrimSpace(rawHeader))
}

// CountryInList reports case-insensitive membership.
func CountryInList(country string, list []string) bool {
	for _, c := range list {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// EvaluateGeoPolicy applies most-restrictive-first precedence:
// Block > Maze > Challenge > Allow.
func EvaluateGeoPolicy(country string, cfg *config.Config) GeoPolicyRoute {
	if country == "" {
		return GeoRouteNone
	}
	normalized, ok := validate.NormalizeCountryCodeISO(country)
	if !ok {
		return GeoRouteNone
	}
	switch {
	case CountryInList(normalized, cfg.GeoBlock):
		return GeoRouteBlock
	case CountryInList(normalized, cfg.GeoMaze):
		return GeoRouteMaze
	case CountryInList(normalized, cfg.GeoChallenge):
		return GeoRouteChallenge
	case CountryInList(normalized, cfg.GeoAllow):
		return GeoRouteAllow
	default:
		return GeoRouteNone
	}
}

// AssessGeo builds the full GeoAssessment for one request.
func AssessGeo(headersTrusted bool, rawCountryHeader string, cfg *config.Config) GeoAssessment {
	country, ok := ExtractGeoCountry(headersTrusted, rawCountryHeader)
	if !ok {
		return GeoAssessment{HeadersTrusted: headersTrusted}
	}
	route := EvaluateGeoPolicy(country, cfg)
	scoredRisk := route == GeoRouteBlock || route == GeoRouteMaze || route == GeoRouteChallenge
	return GeoAssessment{
		HeadersTrusted: headersTrusted,
		Country:        country,
		Route:          route,
		ScoredRisk:      scoredRisk,
	}
}
