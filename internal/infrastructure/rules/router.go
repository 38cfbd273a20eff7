package rules

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type teamEntry struct {
	label string
	team  string
}

// Router maps request types to owning teams. Lookups are case-insensitive
// through title-casing and pass through the alias table first.
type Router struct {
	defaultTeam string
	teams       map[string]teamEntry
	aliases     map[string]string
}

func NewRouter(tables Tables) *Router {
	r := &Router{
		defaultTeam: tables.Routing.DefaultTeam,
		teams:       make(map[string]teamEntry, len(tables.Routing.Teams)),
		aliases:     make(map[string]string, len(tables.Routing.Aliases)),
	}
	for label, team := range tables.Routing.Teams {
		r.teams[titleCase(label)] = teamEntry{label: label, team: team}
	}
	for alias, target := range tables.Routing.Aliases {
		r.aliases[titleCase(alias)] = titleCase(target)
	}
	return r
}

// Canonicalize returns the configured label for requestType and whether it
// is a known category.
func (r *Router) Canonicalize(requestType string) (string, bool) {
	key := r.resolve(requestType)
	entry, ok := r.teams[key]
	if !ok {
		return key, false
	}
	return entry.label, true
}

func (r *Router) Route(requestType string) string {
	entry, ok := r.teams[r.resolve(requestType)]
	if !ok {
		return r.defaultTeam
	}
	return entry.team
}

// Categories lists the configured request types in sorted order.
func (r *Router) Categories() []string {
	out := make([]string, 0, len(r.teams))
	for _, entry := range r.teams {
		out = append(out, entry.label)
	}
	sort.Strings(out)
	return out
}

func (r *Router) DefaultTeam() string {
	return r.defaultTeam
}

func (r *Router) resolve(requestType string) string {
	key := titleCase(requestType)
	if target, ok := r.aliases[key]; ok {
		return target
	}
	return key
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		first, size := utf8.DecodeRuneInString(lower)
		words[i] = string(unicode.ToTitle(first)) + lower[size:]
	}
	return strings.Join(words, " ")
}
