package search_test

import (
	"testing"

	"github.com/italolelis/torrent_finder/internal/search"
	"github.com/stretchr/testify/assert"
)

func TestExtractPreset(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantCodes     []string
		wantRemainder string
		wantSlug      string
	}{
		{"movie prefix", "movie Heat", []string{"2000"}, "Heat", "movies"},
		{"film alias", "film The Substance", []string{"2000"}, "The Substance", "movies"},
		{"tv show two-word alias", "tv show Severance", []string{"5000"}, "Severance", "tv"},
		{"series alias", "series Dark", []string{"5000"}, "Dark", "tv"},
		{"windows software two codes", "windows software office", []string{"4010", "4020"}, "office", "software-win"},
		{"mac alias", "macos Pixelmator", []string{"4050"}, "Pixelmator", "software-mac"},
		{"all keyword", "all ubuntu iso", nil, "ubuntu iso", "all"},
		{"no prefix", "the big lebowski", nil, "the big lebowski", ""},
		{"prefix only inside word does not match", "movies2 catalog", nil, "movies2 catalog", ""},
		{"case insensitive prefix", "MOVIE Heat", []string{"2000"}, "Heat", "movies"},
		{"hyphen separator", "tv-show Severance", []string{"5000"}, "Severance", "tv"},
		{"empty", "   ", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, remainder, slug := search.ExtractPreset(tt.query)
			assert.Equal(t, tt.wantCodes, codes)
			assert.Equal(t, tt.wantRemainder, remainder)
			assert.Equal(t, tt.wantSlug, slug)
		})
	}
}

func TestExtractPreset_KeepsRemainderCasing(t *testing.T) {
	// The category keyword is consumed but the title must come out verbatim,
	// punctuation included.
	_, remainder, slug := search.ExtractPreset("movie Spider-Man: No Way Home")

	assert.Equal(t, "movies", slug)
	assert.Equal(t, "Spider-Man: No Way Home", remainder)
}

func TestPresetBySlug(t *testing.T) {
	preset, ok := search.PresetBySlug("tv")
	assert.True(t, ok)
	assert.Equal(t, []string{"5000"}, preset.Codes)

	_, ok = search.PresetBySlug("vinyl")
	assert.False(t, ok)
}

func TestPresets_ContainsAll(t *testing.T) {
	slugs := make([]string, 0)
	for _, p := range search.Presets() {
		slugs = append(slugs, p.Slug)
	}

	assert.Contains(t, slugs, "movies")
	assert.Contains(t, slugs, "tv")
	assert.Contains(t, slugs, "all")
}
