package jira

import (
	"strings"
)

// IsBrowseURL reports whether ref looks like a Jira web link
// (https://company.atlassian.net/browse/PROJ-123).
func IsBrowseURL(ref string) bool {
	return strings.Contains(ref, "/browse/")
}

// ExtractKey extracts the Jira issue key from a browse URL.
// For example, "https://company.atlassian.net/browse/PROJ-123" returns "PROJ-123".
// Query strings and fragments are dropped.
func ExtractKey(ref string) string {
	idx := strings.LastIndex(ref, "/browse/")
	if idx == -1 {
		return ""
	}
	key := ref[idx+len("/browse/"):]
	if i := strings.IndexAny(key, "?#/"); i >= 0 {
		key = key[:i]
	}
	return key
}

// NormalizeKey accepts either a bare issue key or a browse URL and returns
// the key. Bare keys are returned trimmed but otherwise unchanged.
func NormalizeKey(ref string) string {
	ref = strings.TrimSpace(ref)
	if IsBrowseURL(ref) {
		return ExtractKey(ref)
	}
	return ref
}
