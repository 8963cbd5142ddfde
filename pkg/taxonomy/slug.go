package taxonomy

import (
	"regexp"
	"strings"
)

// Stopwords are ignored when indexing and voting on words. They are too
// generic to discriminate between technologies.
var Stopwords = map[string]struct{}{
	"service": {}, "services": {}, "server": {}, "engine": {}, "api": {},
	"db": {}, "database": {}, "system": {}, "app": {}, "apps": {},
	"module": {}, "component": {},
}

var (
	nonAlnumRE       = regexp.MustCompile(`[^a-z0-9]+`)
	wordRE           = regexp.MustCompile(`[a-z0-9]+`)
	providerPrefixRE = regexp.MustCompile(`^(aws|gcp|azure|google|oci|alibaba|ibm)[-_]`)
)

// Slugify lowercases label, collapses every run of non-alphanumerics into a
// hyphen and trims leading and trailing hyphens.
func Slugify(label string) string {
	return strings.Trim(nonAlnumRE.ReplaceAllString(strings.ToLower(label), "-"), "-")
}

// NormalizeLabel returns the slug of s and its core token (the last word).
func NormalizeLabel(s string) (slug, core string) {
	tokens := strings.Fields(nonAlnumRE.ReplaceAllString(strings.ToLower(s), " "))
	if len(tokens) == 0 {
		slug = Slugify(s)
		return slug, slug
	}
	return strings.Join(tokens, "-"), tokens[len(tokens)-1]
}

// CandidateSlugs returns the full slug of label followed by each of its
// hyphen-separated parts, in order. Duplicates of the full slug are skipped.
func CandidateSlugs(label string) []string {
	slug := Slugify(label)
	if slug == "" {
		return nil
	}
	out := []string{slug}
	parts := strings.Split(slug, "-")
	if len(parts) == 1 {
		return out
	}
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// StripProviderPrefix removes a leading cloud provider such as "aws-" or
// "gcp_" from slug. ok is false when no prefix was present.
func StripProviderPrefix(slug string) (string, bool) {
	loc := providerPrefixRE.FindStringIndex(slug)
	if loc == nil {
		return slug, false
	}
	return slug[loc[1]:], true
}

// Words tokenizes s into lowercase alphanumeric runs, dropping stopwords.
func Words(s string) []string {
	var out []string
	for _, w := range wordRE.FindAllString(strings.ToLower(s), -1) {
		if _, stop := Stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// WordOverlap counts the distinct alphanumeric words shared by a and b.
func WordOverlap(a, b string) int {
	set := map[string]struct{}{}
	for _, w := range wordRE.FindAllString(strings.ToLower(a), -1) {
		set[w] = struct{}{}
	}
	n := 0
	seen := map[string]struct{}{}
	for _, w := range wordRE.FindAllString(strings.ToLower(b), -1) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}
