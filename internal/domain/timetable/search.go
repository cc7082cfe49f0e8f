package timetable

import (
	"strings"
	"unicode"
)

// abbreviationAliases maps short queries to extra substrings that should
// also match, for group families whose common abbreviation differs from
// their catalog prefix.
var abbreviationAliases = map[string][]string{
	"боз": {"бози"},
	"бип": {"бипз", "бипо"},
}

// MatchGroups filters groups by a user-entered query. An exact name match
// wins outright; otherwise substring matches and matches of the query
// against the leading capital letters of the name are returned (so "БОЗ"
// finds "БОЗИоз23").
func MatchGroups(groups []*Group, query string) []*Group {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var aliases []string
	for prefix, related := range abbreviationAliases {
		if strings.HasPrefix(query, prefix) {
			aliases = append(aliases, related...)
		}
	}

	var exact, partial []*Group
	for _, g := range groups {
		name := strings.ToLower(g.Name)
		switch {
		case name == query:
			exact = append(exact, g)
		case strings.Contains(name, query):
			partial = append(partial, g)
		case len([]rune(query)) >= 2 && isLetters(query) && strings.Contains(leadingCapitals(g.Name), query):
			partial = append(partial, g)
		case containsAny(name, aliases):
			partial = append(partial, g)
		}
	}
	// An exact name match settles the query outright.
	if len(exact) > 0 {
		return exact
	}
	return partial
}

// leadingCapitals extracts the run of uppercase letters a group name starts
// with, lowercased for comparison.
func leadingCapitals(name string) string {
	var b strings.Builder
	for _, r := range name {
		if !unicode.IsUpper(r) {
			break
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
