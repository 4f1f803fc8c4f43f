package bot

import (
	"sync"
	"testing"

	"github.com/italolelis/torrent_finder/internal/search"
	"github.com/stretchr/testify/assert"
)

func TestStore_GetCreatesLazily(t *testing.T) {
	store := NewStore()
	assert.Equal(t, 0, store.Len())

	s1 := store.Get(10)
	s2 := store.Get(10)
	other := store.Get(20)

	assert.Same(t, s1, s2)
	assert.NotSame(t, s1, other)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, StateIdle, s1.State())
}

func TestStore_ConcurrentGetSameChat(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup

	sessions := make([]*Session, 16)

	for i := range sessions {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			sessions[i] = store.Get(99)
		}(i)
	}

	wg.Wait()

	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}

	assert.Equal(t, 1, store.Len())
}

func TestSession_SearchLifecycle(t *testing.T) {
	s := &Session{chatID: 1, state: StateIdle, selected: noSelection}

	s.beginSearch()
	assert.Equal(t, StateSearching, s.state)

	rs := &search.ResultSet{Candidates: []search.Candidate{{Title: "a"}}}
	s.finishSearch(rs)
	assert.Equal(t, StateBrowsing, s.state)
	assert.Same(t, rs, s.results)
}

func TestSession_EmptySearchGoesIdle(t *testing.T) {
	s := &Session{chatID: 1}

	s.beginSearch()
	s.finishSearch(&search.ResultSet{})

	assert.Equal(t, StateIdle, s.state)
	assert.Nil(t, s.results)

	s.beginSearch()
	s.finishSearch(nil)
	assert.Equal(t, StateIdle, s.state)
}

func TestSession_BeginSearchClearsSelection(t *testing.T) {
	s := &Session{
		chatID:       1,
		state:        StateAwaitingDestination,
		results:      &search.ResultSet{Candidates: []search.Candidate{{Title: "a"}}},
		page:         2,
		selected:     0,
		resultsMsgID: 9,
	}

	s.beginSearch()

	assert.Nil(t, s.results)
	assert.Equal(t, 0, s.page)
	assert.Equal(t, noSelection, s.selected)
	assert.Equal(t, 0, s.resultsMsgID)
}
