package bot

import (
	"sync"

	"github.com/italolelis/torrent_finder/internal/search"
)

// State tags the conversation position of one chat.
type State string

const (
	// StateIdle: no result set to browse; only a new search moves forward.
	StateIdle State = "idle"
	// StateSearching: a feed query is in flight. Transient, it never rests
	// between events because searches run synchronously under the session
	// lock.
	StateSearching State = "searching"
	// StateBrowsing: a ranked result set is open for pagination and picks.
	StateBrowsing State = "browsing"
	// StateAwaitingDestination: a candidate is picked, waiting for a
	// download directory choice.
	StateAwaitingDestination State = "awaiting_destination"
)

const noSelection = -1

// Session is the mutable per-chat conversation state. Every transition runs
// under mu from first read to last write, so the state machine never observes
// interleaved transitions for the same chat.
type Session struct {
	mu sync.Mutex

	chatID       int64
	state        State
	results      *search.ResultSet
	page         int
	selected     int // absolute index into results, noSelection when unset
	promptSlug   string
	resultsMsgID int
}

// State returns the current state tag. For observation only; handlers already
// hold the session lock.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// beginSearch replaces the result set wholesale. Any pending selection dies
// with the old set: a destination prompt never survives a fresh search.
func (s *Session) beginSearch() {
	s.state = StateSearching
	s.results = nil
	s.page = 0
	s.selected = noSelection
	s.resultsMsgID = 0
}

func (s *Session) finishSearch(rs *search.ResultSet) {
	if rs == nil || rs.Len() == 0 {
		s.state = StateIdle

		return
	}

	s.state = StateBrowsing
	s.results = rs
}

func (s *Session) reset() {
	s.state = StateIdle
	s.results = nil
	s.page = 0
	s.selected = noSelection
	s.resultsMsgID = 0
}

// Store holds one Session per chat identity, created lazily on first
// interaction and kept for the process lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating it when missing.
func (st *Store) Get(chatID int64) *Session {
	st.mu.RLock()
	s, ok := st.sessions[chatID]
	st.mu.RUnlock()

	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[chatID]; ok {
		return s
	}

	s = &Session{chatID: chatID, state: StateIdle, selected: noSelection}
	st.sessions[chatID] = s

	return s
}

// Len reports how many chats have interacted so far.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.sessions)
}
