// Package services contains the pure domain logic of the publication pipeline.
package services

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// Messages returned to the triggering system for rejected build URLs
const (
	MsgMissingBuildURL     = "The incrementals-publisher invocation was missing the build_url attribute"
	MsgUnsupportedBuildURL = "This build_url is not supported"
	MsgMalformedBuildURL   = "This build_url is malformed"
)

// buildPathPattern matches the part of a build URL after the CI host base:
// job/view pairs ending in a job pair, then the build number.
var buildPathPattern = regexp.MustCompile(`^(?:(?:job|view)/[A-Za-z0-9._-]+/)*job/[A-Za-z0-9._-]+/[0-9]+/$`)

// ValidateBuildURL checks raw against the configured CI host and the build path shape.
// It is pure; the returned reference carries raw unchanged.
func ValidateBuildURL(raw, ciHost string) (entities.BuildReference, error) {
	if strings.TrimSpace(raw) == "" {
		return entities.BuildReference{}, entities.NewViolation(entities.MalformedInput, MsgMissingBuildURL)
	}

	host, err := url.Parse(ciHost)
	if err != nil || host.Scheme == "" || host.Host == "" {
		return entities.BuildReference{}, entities.NewViolation(entities.UnsupportedHost, MsgUnsupportedBuildURL)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return entities.BuildReference{}, entities.NewViolation(entities.MalformedPath, MsgMalformedBuildURL)
	}
	if parsed.Scheme != host.Scheme || parsed.Host != host.Host || parsed.User != nil {
		return entities.BuildReference{}, entities.NewViolation(entities.UnsupportedHost, MsgUnsupportedBuildURL)
	}

	if strings.Contains(raw, "/../") || strings.Contains(raw, "/./") {
		return entities.BuildReference{}, entities.NewViolation(entities.MalformedPath, MsgMalformedBuildURL)
	}

	base := hostBase(host)
	if !strings.HasPrefix(raw, base) {
		return entities.BuildReference{}, entities.NewViolation(entities.MalformedPath, MsgMalformedBuildURL)
	}
	rest := raw[len(base):]
	if !buildPathPattern.MatchString(rest) || hasDotSegment(rest) {
		return entities.BuildReference{}, entities.NewViolation(entities.MalformedPath, MsgMalformedBuildURL)
	}

	return entities.BuildReference{URL: raw}, nil
}

// hostBase renders the configured host as the prefix every build URL must start with
func hostBase(host *url.URL) string {
	path := host.EscapedPath()
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return host.Scheme + "://" + host.Host + path
}

func hasDotSegment(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == "." || segment == ".." {
			return true
		}
	}
	return false
}
