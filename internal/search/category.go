package search

import (
	"sort"
	"strings"
)

// CategoryPreset is a named shortcut that expands into Torznab category codes.
// Presets with more than one code combine by union on the feed side.
type CategoryPreset struct {
	Slug    string
	Label   string
	Codes   []string
	aliases []string
}

var presets = []CategoryPreset{
	{
		Slug:    "movies",
		Label:   "Movies",
		Codes:   []string{"2000"},
		aliases: []string{"movie", "movies", "film", "films"},
	},
	{
		Slug:    "tv",
		Label:   "TV Shows",
		Codes:   []string{"5000"},
		aliases: []string{"tv", "tvshow", "tv-show", "tv shows", "tv show", "series", "tvseries"},
	},
	{
		Slug:    "software",
		Label:   "Software",
		Codes:   []string{"4000"},
		aliases: []string{"software", "apps", "application", "applications"},
	},
	{
		Slug:    "software-mac",
		Label:   "Software (macOS)",
		Codes:   []string{"4050"},
		aliases: []string{"software mac", "mac software", "mac", "macos"},
	},
	{
		Slug:    "software-win",
		Label:   "Software (Windows)",
		Codes:   []string{"4010", "4020"},
		aliases: []string{"software win", "software windows", "win software", "windows software", "windows"},
	},
	{
		Slug:    "all",
		Label:   "All categories",
		Codes:   nil,
		aliases: []string{"all", "any"},
	},
}

type aliasRule struct {
	tokens []string
	slug   string
}

// aliasRules is ordered longest alias first so "tv show severance" matches the
// "tv show" alias before the bare "tv" one.
var aliasRules = buildAliasRules()

func buildAliasRules() []aliasRule {
	var rules []aliasRule

	for _, p := range presets {
		for _, alias := range p.aliases {
			rules = append(rules, aliasRule{tokens: splitAlias(alias), slug: p.Slug})
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].tokens) > len(rules[j].tokens)
	})

	return rules
}

func isAliasSep(r rune) bool {
	return r == ' ' || r == '\t' || r == '-'
}

func splitAlias(alias string) []string {
	return strings.FieldsFunc(strings.ToLower(alias), isAliasSep)
}

// Presets returns all category shortcuts exposed to users.
func Presets() []CategoryPreset {
	return presets
}

// PresetBySlug looks up a preset, reporting whether the slug is known.
func PresetBySlug(slug string) (CategoryPreset, bool) {
	for _, p := range presets {
		if p.Slug == slug {
			return p, true
		}
	}

	return CategoryPreset{}, false
}

// ExtractPreset detects an optional category keyword prefix in a free-form
// query. It returns the category codes to apply (nil when no filter), the
// remaining search text with its original casing and punctuation, and the
// matched preset slug ("" when none matched).
func ExtractPreset(query string) ([]string, string, string) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, "", ""
	}

	for _, rule := range aliasRules {
		remainder, ok := consumePrefix(trimmed, rule.tokens)
		if !ok {
			continue
		}

		preset, _ := PresetBySlug(rule.slug)

		return preset.Codes, remainder, rule.slug
	}

	return nil, trimmed, ""
}

// consumePrefix matches the alias tokens word by word at the start of the
// query, treating spaces and hyphens as interchangeable separators, and
// returns the untouched remainder of the query on success.
func consumePrefix(query string, tokens []string) (string, bool) {
	rest := query

	for _, token := range tokens {
		rest = strings.TrimLeftFunc(rest, isAliasSep)

		cut := strings.IndexFunc(rest, isAliasSep)
		word := rest
		if cut >= 0 {
			word = rest[:cut]
			rest = rest[cut:]
		} else {
			rest = ""
		}

		if !strings.EqualFold(word, token) {
			return "", false
		}
	}

	return strings.TrimLeftFunc(rest, isAliasSep), true
}
