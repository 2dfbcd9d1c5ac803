package policy

import "strings"

// MatchesPattern reports whether name matches a single site/dataset name
// pattern from the rule attribute language (§4.6, §glossary): each "*"
// matches any run of characters, "/" included (e.g. "T2_*", "/X/*/*"); a
// pattern without "*" must match exactly.
func MatchesPattern(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, p)
		if i < 0 {
			return false
		}
		rest = rest[i+len(p):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}

// MatchesAny reports whether name matches any pattern in an OR-list
// condition. An empty list is vacuously satisfied, matching the spec's
// convention that an absent condition imposes no restriction.
func MatchesAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if MatchesPattern(p, name) {
			return true
		}
	}
	return false
}
