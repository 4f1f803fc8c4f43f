package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/torrent_finder/internal/config"
	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/logctx"
	"github.com/italolelis/torrent_finder/internal/search"
	"github.com/italolelis/torrent_finder/internal/telemetry"
	"github.com/italolelis/torrent_finder/internal/track"
)

// Searcher is the feed client as the engine sees it.
type Searcher interface {
	Search(ctx context.Context, query string, categories []string) (*search.ResultSet, error)
}

// Engine interprets inbound chat events against per-chat sessions, calling
// the feed and the dispatch backend and replying through the outbound
// channel. Every failure it meets becomes a user-facing message; nothing here
// is fatal to the process.
type Engine struct {
	store     *Store
	searcher  Searcher
	backend   dispatch.TransferClient
	tracker   *track.Tracker
	out       Outbound
	dirs      config.DirPresets
	pageSize  int
	autoStart bool
	debug     bool
	telemetry *telemetry.Telemetry
}

// Options bundles engine knobs that come straight from configuration.
type Options struct {
	DownloadDirs config.DirPresets
	PageSize     int
	StartPaused  bool
	Debug        bool
}

func NewEngine(
	store *Store,
	searcher Searcher,
	backend dispatch.TransferClient,
	tracker *track.Tracker,
	out Outbound,
	opts Options,
	tel *telemetry.Telemetry,
) *Engine {
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 5
	}

	return &Engine{
		store:     store,
		searcher:  searcher,
		backend:   backend,
		tracker:   tracker,
		out:       out,
		dirs:      opts.DownloadDirs,
		pageSize:  pageSize,
		autoStart: !opts.StartPaused,
		debug:     opts.Debug,
		telemetry: tel,
	}
}

// HandleText processes one plain-text inbound message. Transitions for a
// given chat run under its session lock, so concurrent events for the same
// chat serialize while different chats proceed in parallel.
func (e *Engine) HandleText(ctx context.Context, chatID int64, text string) error {
	s := e.store.Get(chatID)

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logctx.With(ctx, "chat_id", chatID)

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "/start" || lower == "start":
		return e.send(ctx, s, greetingMessage())
	case lower == "/help" || lower == "help":
		return e.send(ctx, s, helpMessage())
	case lower == "/status" || lower == "status" || strings.HasPrefix(lower, "status "):
		return e.sendStatus(ctx, s)
	case strings.HasPrefix(lower, "remove "):
		return e.removeTransfer(ctx, s, strings.TrimSpace(trimmed[len("remove "):]))
	case strings.HasPrefix(lower, "/search "):
		return e.performSearch(ctx, s, strings.TrimSpace(trimmed[len("/search "):]))
	case strings.HasPrefix(lower, "search "):
		return e.performSearch(ctx, s, strings.TrimSpace(trimmed[len("search "):]))
	case lower == "search" || lower == "/search":
		return e.send(ctx, s, Message{
			Text:     "Give me something to search for, e.g. `search the big lebowski`.",
			Markdown: true,
		})
	case lower == "next":
		return e.turnPage(ctx, s, s.page+1)
	case lower == "prev" || lower == "previous":
		return e.turnPage(ctx, s, s.page-1)
	default:
		if n, err := strconv.Atoi(lower); err == nil {
			return e.pickCandidate(ctx, s, n)
		}

		if s.promptSlug != "" {
			slug := s.promptSlug
			s.promptSlug = ""

			if preset, ok := search.PresetBySlug(slug); ok && trimmed != "" {
				return e.searchWithPreset(ctx, s, trimmed, preset)
			}
		}

		return e.send(ctx, s, Message{
			Text: "Say `search <title>` to look for something, `status` to inspect active torrents, " +
				"or send a number to pick from the last list.",
			Markdown: true,
		})
	}
}

// HandleCallback processes one inline keyboard tap.
func (e *Engine) HandleCallback(ctx context.Context, chatID int64, data string) error {
	s := e.store.Get(chatID)

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logctx.With(ctx, "chat_id", chatID)

	switch {
	case data == statusCallback:
		return e.sendStatus(ctx, s)
	case data == helpCallback:
		return e.send(ctx, s, helpMessage())
	case strings.HasPrefix(data, pickPrefix):
		n, err := strconv.Atoi(data[len(pickPrefix):])
		if err != nil {
			logctx.LoggerFromContext(ctx).Warn("bad selection payload", "data", data)

			return nil
		}

		return e.pickCandidate(ctx, s, n)
	case strings.HasPrefix(data, dirPrefix):
		return e.chooseDestination(ctx, s, data[len(dirPrefix):])
	case strings.HasPrefix(data, pagePrefix):
		page, err := strconv.Atoi(data[len(pagePrefix):])
		if err != nil {
			return nil
		}

		return e.turnPage(ctx, s, page)
	case strings.HasPrefix(data, catPrefix):
		return e.promptCategory(ctx, s, data[len(catPrefix):])
	default:
		logctx.LoggerFromContext(ctx).Debug("ignoring unknown callback payload", "data", data)

		return nil
	}
}

func (e *Engine) searchWithPreset(ctx context.Context, s *Session, query string, preset search.CategoryPreset) error {
	return e.search(ctx, s, query, preset.Codes, preset.Slug)
}

func (e *Engine) performSearch(ctx context.Context, s *Session, rawQuery string) error {
	codes, query, slug := search.ExtractPreset(rawQuery)
	if query == "" {
		return e.send(ctx, s, Message{Text: "Give me something to search for after the category keyword."})
	}

	return e.search(ctx, s, query, codes, slug)
}

func (e *Engine) search(ctx context.Context, s *Session, query string, codes []string, slug string) error {
	logger := logctx.LoggerFromContext(ctx).With("query", query, "category", slug)

	// A fresh search always discards the previous result set and any pending
	// selection, regardless of the current state.
	s.beginSearch()

	if err := e.send(ctx, s, searchingMessage(query, slug)); err != nil {
		return err
	}

	start := time.Now()

	rs, err := e.searcher.Search(ctx, query, codes)
	if err != nil {
		s.finishSearch(nil)

		return e.reportSearchFailure(ctx, s, logger, err, time.Since(start))
	}

	e.recordSearch("ok", time.Since(start))

	rs.Category = slug
	s.finishSearch(rs)

	logger.Info("search finished", "result_count", rs.Len())

	return e.sendResults(ctx, s)
}

func (e *Engine) reportSearchFailure(ctx context.Context, s *Session, logger *slog.Logger, err error, elapsed time.Duration) error {
	var malformed *search.MalformedResponseError

	switch {
	case errors.Is(err, search.ErrNoResults):
		e.recordSearch("empty", elapsed)
		e.echoRawFeed(ctx)

		return e.send(ctx, s, Message{Text: "Nothing found. Try a broader query or verify your indexer config."})
	case errors.As(err, &malformed):
		e.recordSearch("malformed", elapsed)
		logger.Warn("feed response unusable", "err", err)

		return e.send(ctx, s, Message{Text: "The indexer replied with something unreadable. Try again in a bit."})
	default:
		e.recordSearch("error", elapsed)
		logger.Warn("search failed", "err", err)

		return e.send(ctx, s, Message{Text: fmt.Sprintf("Search failed: %v", err)})
	}
}

// echoRawFeed logs the head of the raw feed body after an empty result, when
// the searcher exposes it and debug mode is on.
func (e *Engine) echoRawFeed(ctx context.Context) {
	if !e.debug {
		return
	}

	raw, ok := e.searcher.(interface{ LastRawResponse() []byte })
	if !ok {
		return
	}

	body := raw.LastRawResponse()
	if len(body) > 600 {
		body = body[:600]
	}

	logctx.LoggerFromContext(ctx).Info("raw feed body after empty result", "body_head", string(body))
}

func (e *Engine) sendResults(ctx context.Context, s *Session) error {
	msgID, err := e.out.Send(ctx, s.chatID, resultsMessage(s.results, s.page, e.pageSize))
	if err != nil {
		return err
	}

	s.resultsMsgID = msgID

	return nil
}

// turnPage moves the pagination cursor, clamped into range. Out-of-range
// requests re-render the nearest valid page instead of erroring.
func (e *Engine) turnPage(ctx context.Context, s *Session, page int) error {
	if s.state != StateBrowsing || s.results == nil {
		return e.send(ctx, s, Message{Text: "No active search. Use `search <title>` first.", Markdown: true})
	}

	s.page = s.results.ClampPage(page, e.pageSize)

	msg := resultsMessage(s.results, s.page, e.pageSize)

	// Refresh the existing listing in place when we still know its id.
	if s.resultsMsgID != 0 {
		if err := e.out.Edit(ctx, s.chatID, s.resultsMsgID, msg); err == nil {
			return nil
		}
	}

	return e.sendResults(ctx, s)
}

// pickCandidate records a selection by its absolute 1-based index, bounds
// checked against the page currently on screen. An invalid index leaves the
// state untouched and re-emits the page.
func (e *Engine) pickCandidate(ctx context.Context, s *Session, n int) error {
	if (s.state != StateBrowsing && s.state != StateAwaitingDestination) || s.results == nil {
		return e.send(ctx, s, Message{Text: "No active search. Use `search <title>` first.", Markdown: true})
	}

	pageCands, start := s.results.Page(s.page, e.pageSize)
	if n < start+1 || n > start+len(pageCands) {
		if err := e.send(ctx, s, Message{
			Text: fmt.Sprintf("Choose between %d and %d.", start+1, start+len(pageCands)),
		}); err != nil {
			return err
		}

		return e.sendResults(ctx, s)
	}

	s.selected = n - 1
	s.state = StateAwaitingDestination

	return e.send(ctx, s, destinationMessage(s.results.Candidates[s.selected].Title, e.dirs))
}

// chooseDestination dispatches the pending selection to the backend.
func (e *Engine) chooseDestination(ctx context.Context, s *Session, path string) error {
	logger := logctx.LoggerFromContext(ctx)

	if s.state != StateAwaitingDestination || s.selected == noSelection || s.results == nil ||
		s.selected >= s.results.Len() {
		return e.send(ctx, s, Message{
			Text:     "No torrent is waiting for a download location. Start with `search ...`.",
			Markdown: true,
		})
	}

	dir, ok := e.lookupDir(path)
	if !ok {
		logger.Warn("destination outside configured presets", "path", path)

		return e.send(ctx, s, destinationMessage(s.results.Candidates[s.selected].Title, e.dirs))
	}

	cand := s.results.Candidates[s.selected]

	title := cand.Title
	if title == "" {
		title = "(untitled)"
	}

	if err := e.send(ctx, s, Message{
		Text:     fmt.Sprintf("Sending *%s* to the download client…", title),
		Markdown: true,
	}); err != nil {
		return err
	}

	id, err := e.backend.Add(ctx, cand.Magnet, dir.Path, e.autoStart)

	// The selection is consumed either way; the session returns to idle.
	s.reset()

	if err != nil {
		e.recordDispatch("error")
		logger.Error("dispatch failed", "err", err)

		return e.send(ctx, s, Message{Text: dispatchFailureText(err)})
	}

	e.recordDispatch("ok")
	e.tracker.Track(id, s.chatID, cand.Title)

	logger.Info("transfer dispatched", "transfer_id", id, "download_dir", dir.Path)

	return e.send(ctx, s, Message{
		Text: fmt.Sprintf("Queued as transfer %s (%s). I'll ping you here when it finishes.", id, dir.Label),
	})
}

func dispatchFailureText(err error) string {
	var (
		authErr    *dispatch.AuthError
		locatorErr *dispatch.InvalidLocatorError
		unreachErr *dispatch.UnreachableError
	)

	switch {
	case errors.As(err, &authErr):
		return "The download client rejected our credentials. Check the backend settings."
	case errors.As(err, &locatorErr):
		return "The download client refused that magnet link."
	case errors.As(err, &unreachErr):
		return "The download client is unreachable right now. Try again later."
	default:
		return fmt.Sprintf("The download client said nope: %v", err)
	}
}

func (e *Engine) lookupDir(path string) (config.DirPreset, bool) {
	for _, dir := range e.dirs {
		if dir.Path == path {
			return dir, true
		}
	}

	return config.DirPreset{}, false
}

// sendStatus reports every backend transfer. Works from any state and never
// changes it.
func (e *Engine) sendStatus(ctx context.Context, s *Session) error {
	transfers, err := e.backend.List(ctx)
	if err != nil {
		logctx.LoggerFromContext(ctx).Warn("status check failed", "err", err)

		return e.send(ctx, s, Message{Text: fmt.Sprintf("Status check failed: %v", err)})
	}

	return e.send(ctx, s, statusMessage(transfers))
}

// removeTransfer drops a transfer from the backend and from completion
// tracking. Works from any state and never changes it.
func (e *Engine) removeTransfer(ctx context.Context, s *Session, id string) error {
	if id == "" {
		return e.send(ctx, s, Message{Text: "Tell me which transfer to drop, e.g. `remove 12`.", Markdown: true})
	}

	err := e.backend.Remove(ctx, id)

	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		return e.send(ctx, s, Message{Text: fmt.Sprintf("No transfer with id %s.", id)})
	case err != nil:
		logctx.LoggerFromContext(ctx).Warn("remove failed", "transfer_id", id, "err", err)

		return e.send(ctx, s, Message{Text: fmt.Sprintf("Remove failed: %v", err)})
	}

	e.tracker.Forget(id)

	return e.send(ctx, s, Message{Text: fmt.Sprintf("Removed transfer %s.", id)})
}

func (e *Engine) promptCategory(ctx context.Context, s *Session, slug string) error {
	preset, ok := search.PresetBySlug(slug)
	if !ok {
		return nil
	}

	s.promptSlug = slug

	if slug == "all" {
		return e.send(ctx, s, Message{Text: "Send the title to search:"})
	}

	return e.send(ctx, s, Message{Text: fmt.Sprintf("Send the %s name to search:", strings.ToLower(preset.Label))})
}

func (e *Engine) send(ctx context.Context, s *Session, msg Message) error {
	_, err := e.out.Send(ctx, s.chatID, msg)

	return err
}

func (e *Engine) recordSearch(outcome string, elapsed time.Duration) {
	if e.telemetry != nil {
		e.telemetry.RecordSearch(outcome, elapsed)
	}
}

func (e *Engine) recordDispatch(outcome string) {
	if e.telemetry != nil {
		e.telemetry.RecordDispatch(outcome)
	}
}
