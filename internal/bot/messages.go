package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/torrent_finder/internal/config"
	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/search"
)

// Callback data prefixes for inline keyboard taps.
const (
	pickPrefix = "pick:"
	dirPrefix  = "dir:"
	pagePrefix = "page:"
	catPrefix  = "cat:"

	statusCallback = "status"
	helpCallback   = "help"
)

var statusDescriptions = map[dispatch.Status]string{
	dispatch.StatusQueued:      "waiting in queue",
	dispatch.StatusDownloading: "actively downloading",
	dispatch.StatusSeeding:     "completed and seeding",
	dispatch.StatusStopped:     "paused or finished",
	dispatch.StatusChecking:    "verifying data",
	dispatch.StatusError:       "the backend reported an error",
}

// explainStatus turns a status tag into a short human explanation.
func explainStatus(status dispatch.Status) string {
	if desc, ok := statusDescriptions[status]; ok {
		return desc
	}

	return "status reported by the backend"
}

func greetingMessage() Message {
	return Message{
		Text: "Send `search <title>` to see the top torrents, tap *Status* to inspect downloads, " +
			"then press a number or button to start the transfer.",
		Markdown: true,
		Buttons:  shortcutButtons(),
	}
}

func helpMessage() Message {
	return Message{
		Text: "Commands:\n" +
			"- `search <title>`: look up torrents and see the top matches.\n" +
			"- Prefix with `search movies ...`, `search tv ...`, or `search software ...` for category presets.\n" +
			"- `<number>` or button tap: pick one of the listed torrents to start the download.\n" +
			"- `next` / `prev`: page through the results.\n" +
			"- `status`: list every torrent with a short explanation of its state.\n" +
			"- `remove <id>`: drop a torrent from the backend.\n" +
			"- `help`: show this message again.",
		Markdown: true,
		Buttons:  shortcutButtons(),
	}
}

func shortcutButtons() [][]Button {
	var categoryRow []Button

	for _, preset := range search.Presets() {
		if preset.Slug == "all" {
			continue
		}

		categoryRow = append(categoryRow, Button{Label: preset.Label, Data: catPrefix + preset.Slug})
	}

	return [][]Button{
		{
			{Label: "Status", Data: statusCallback},
			{Label: "Help", Data: helpCallback},
		},
		categoryRow,
	}
}

func searchingMessage(query, slug string) Message {
	if preset, ok := search.PresetBySlug(slug); ok && slug != "all" && slug != "" {
		return Message{Text: fmt.Sprintf("Searching %s for “%s”…", preset.Label, query)}
	}

	return Message{Text: fmt.Sprintf("Searching for “%s”…", query)}
}

// resultsMessage renders one page of a ranked result set with pick buttons
// and prev/next navigation.
func resultsMessage(rs *search.ResultSet, page, pageSize int) Message {
	candidates, start := rs.Page(page, pageSize)
	totalPages := rs.TotalPages(pageSize)

	header := fmt.Sprintf("Top %d results for *%s*", rs.Len(), rs.Query)
	if preset, ok := search.PresetBySlug(rs.Category); ok && rs.Category != "all" {
		header += fmt.Sprintf(" (%s)", preset.Label)
	}

	if totalPages > 1 {
		header += fmt.Sprintf(" — page %d/%d", page+1, totalPages)
	}

	lines := []string{header + ":"}

	for i, cand := range candidates {
		lines = append(lines, candidateCard(start+i+1, cand)...)
	}

	lines = append(lines, "Reply with the number to pick a torrent.")

	var pickRow []Button
	for i := range candidates {
		idx := start + i + 1
		pickRow = append(pickRow, Button{Label: fmt.Sprintf("#%d", idx), Data: fmt.Sprintf("%s%d", pickPrefix, idx)})
	}

	buttons := [][]Button{pickRow}

	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Label: "Prev", Data: fmt.Sprintf("%s%d", pagePrefix, page-1)})
	}

	if page < totalPages-1 {
		nav = append(nav, Button{Label: "Next", Data: fmt.Sprintf("%s%d", pagePrefix, page+1)})
	}

	if len(nav) > 0 {
		buttons = append(buttons, nav)
	}

	return Message{Text: strings.Join(lines, "\n"), Markdown: true, Buttons: buttons}
}

func candidateCard(index int, cand search.Candidate) []string {
	title := cand.Title
	if title == "" {
		title = "(untitled)"
	}

	size := "unknown"
	if cand.Size > 0 {
		size = humanize.IBytes(uint64(cand.Size))
	}

	source := cand.Source
	if source == "" {
		source = "torznab"
	}

	return []string{
		fmt.Sprintf("%d. %s", index, title),
		fmt.Sprintf("   seeds: %d | peers: %d | size: %s | source: %s", cand.Seeders, cand.Leechers, size, source),
	}
}

func destinationMessage(title string, dirs config.DirPresets) Message {
	if title == "" {
		title = "(untitled)"
	}

	var row []Button
	for _, dir := range dirs {
		row = append(row, Button{Label: dir.Label, Data: dirPrefix + dir.Path})
	}

	return Message{
		Text:     fmt.Sprintf("Where should I save *%s*?", title),
		Markdown: true,
		Buttons:  [][]Button{row},
	}
}

// statusMessage renders the full transfer list, one block per transfer.
func statusMessage(transfers []*dispatch.Transfer) Message {
	if len(transfers) == 0 {
		return Message{Text: "The backend has no torrents yet."}
	}

	var blocks []string

	for _, t := range transfers {
		blocks = append(blocks,
			fmt.Sprintf("ID   : %s", t.ID),
			fmt.Sprintf("Name : %s", t.Name),
			fmt.Sprintf("State: %s", explainStatus(t.Status)),
			fmt.Sprintf("Done : %5.1f%%  %s", t.Progress, progressBar(t.Progress, 10)),
			fmt.Sprintf("ETA  : %s", formatETA(t.ETA)),
			"",
		)
	}

	return Message{Text: strings.TrimRight(strings.Join(blocks, "\n"), "\n")}
}

// formatETA renders seconds remaining as a compact clock-ish figure. The
// backends report negative values when no estimate exists.
func formatETA(seconds int64) string {
	if seconds < 0 {
		return "—"
	}

	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%02dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func progressBar(percent float64, width int) string {
	filled := int(percent/100.0*float64(width) + 0.5)
	if filled < 0 {
		filled = 0
	}

	if filled > width {
		filled = width
	}

	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}
