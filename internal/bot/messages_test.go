package bot

import (
	"testing"

	"github.com/italolelis/torrent_finder/internal/config"
	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/search"
	"github.com/stretchr/testify/assert"
)

func TestResultsMessage_FirstPage(t *testing.T) {
	rs := &search.ResultSet{
		Query: "heat",
		Candidates: []search.Candidate{
			{Title: "Heat 1995 2160p", Seeders: 80, Leechers: 10, Size: 734003200},
			{Title: "Heat 1995 720p", Seeders: 12, Leechers: 3},
			{Title: "Heat 1995 DVD", Seeders: 4},
		},
	}

	msg := resultsMessage(rs, 0, 2)

	assert.True(t, msg.Markdown)
	assert.Contains(t, msg.Text, "Top 3 results for *heat*")
	assert.Contains(t, msg.Text, "page 1/2")
	assert.Contains(t, msg.Text, "1. Heat 1995 2160p")
	assert.Contains(t, msg.Text, "seeds: 80 | peers: 10 | size: 700 MiB")
	assert.Contains(t, msg.Text, "2. Heat 1995 720p")
	assert.NotContains(t, msg.Text, "Heat 1995 DVD")

	// Pick row with absolute indices, then a nav row with only Next.
	assert.Len(t, msg.Buttons, 2)
	assert.Equal(t, "pick:1", msg.Buttons[0][0].Data)
	assert.Equal(t, "pick:2", msg.Buttons[0][1].Data)
	assert.Equal(t, []Button{{Label: "Next", Data: "page:1"}}, msg.Buttons[1])
}

func TestResultsMessage_LastPageUsesAbsoluteIndices(t *testing.T) {
	rs := &search.ResultSet{
		Query: "heat",
		Candidates: []search.Candidate{
			{Title: "a"}, {Title: "b"}, {Title: "c"},
		},
	}

	msg := resultsMessage(rs, 1, 2)

	assert.Contains(t, msg.Text, "3. c")
	assert.NotContains(t, msg.Text, "1. a")
	assert.Equal(t, "pick:3", msg.Buttons[0][0].Data)
	assert.Equal(t, []Button{{Label: "Prev", Data: "page:0"}}, msg.Buttons[1])
}

func TestResultsMessage_SinglePageHasNoNav(t *testing.T) {
	rs := &search.ResultSet{Query: "heat", Candidates: []search.Candidate{{Title: "only"}}}

	msg := resultsMessage(rs, 0, 5)

	assert.NotContains(t, msg.Text, "page 1/1")
	assert.Len(t, msg.Buttons, 1)
}

func TestCandidateCard_Fallbacks(t *testing.T) {
	lines := candidateCard(4, search.Candidate{})

	assert.Equal(t, "4. (untitled)", lines[0])
	assert.Contains(t, lines[1], "size: unknown")
	assert.Contains(t, lines[1], "source: torznab")
}

func TestDestinationMessage(t *testing.T) {
	dirs := config.DirPresets{
		{Label: "Movies", Path: "/downloads/movies"},
		{Label: "TV", Path: "/downloads/tv"},
	}

	msg := destinationMessage("Heat 1995", dirs)

	assert.Contains(t, msg.Text, "Heat 1995")
	assert.Len(t, msg.Buttons, 1)
	assert.Equal(t, "dir:/downloads/movies", msg.Buttons[0][0].Data)
	assert.Equal(t, "TV", msg.Buttons[0][1].Label)
}

func TestStatusMessage(t *testing.T) {
	msg := statusMessage([]*dispatch.Transfer{
		{ID: "1", Name: "Heat", Status: dispatch.StatusDownloading, Progress: 50, ETA: 4500},
		{ID: "2", Name: "Severance", Status: dispatch.StatusSeeding, Progress: 100, ETA: -1},
	})

	assert.Contains(t, msg.Text, "ID   : 1")
	assert.Contains(t, msg.Text, "actively downloading")
	assert.Contains(t, msg.Text, "#####-----")
	assert.Contains(t, msg.Text, "ETA  : 1h15m")
	assert.Contains(t, msg.Text, "completed and seeding")
	assert.Contains(t, msg.Text, "##########")
	assert.Contains(t, msg.Text, "ETA  : —")
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{-1, "—"},
		{-2, "—"},
		{0, "0s"},
		{29, "29s"},
		{240, "4m"},
		{3600, "1h00m"},
		{4500, "1h15m"},
		{86700, "24h05m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatETA(tt.seconds))
	}
}

func TestStatusMessage_Empty(t *testing.T) {
	msg := statusMessage(nil)
	assert.Equal(t, "The backend has no torrents yet.", msg.Text)
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{0, "----------"},
		{50, "#####-----"},
		{100, "##########"},
		{104, "##########"},
		{-3, "----------"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressBar(tt.percent, 10))
	}
}

func TestShortcutButtons_ExcludeAllPreset(t *testing.T) {
	rows := shortcutButtons()

	assert.Equal(t, "status", rows[0][0].Data)
	assert.Equal(t, "help", rows[0][1].Data)

	for _, btn := range rows[1] {
		assert.NotEqual(t, "cat:all", btn.Data)
	}
}
