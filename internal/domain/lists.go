package domain

import "slices"

// Feed names as exposed by the Hacker News API.
var ListNames = []string{"top", "new", "best", "ask", "show", "job"}

// CanonicalListName maps user-facing aliases to the canonical feed name.
// "newest" survives from an old route scheme and must keep resolving to the
// same cache entries as "new".
func CanonicalListName(name string) string {
	if name == "newest" {
		return "new"
	}
	return name
}

func IsListName(name string) bool {
	return slices.Contains(ListNames, CanonicalListName(name))
}
