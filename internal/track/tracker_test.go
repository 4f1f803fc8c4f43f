package track_test

import (
	"testing"

	"github.com/italolelis/torrent_finder/internal/track"
	"github.com/stretchr/testify/assert"
)

func TestTracker_TrackAndPending(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("1", 100, "Heat")
	tracker.Track("2", 100, "Severance")

	assert.Equal(t, 2, tracker.Len())

	pending := tracker.Pending()
	assert.Len(t, pending, 2)

	ids := []string{pending[0].ID, pending[1].ID}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestTracker_TrackSameIDReplaces(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("1", 100, "first title")
	tracker.Track("1", 200, "second title")

	pending := tracker.Pending()
	assert.Len(t, pending, 1)
	assert.Equal(t, int64(200), pending[0].ChatID)
	assert.Equal(t, "second title", pending[0].Title)
}

func TestTracker_MarkNotifiedOnce(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("1", 100, "Heat")

	assert.True(t, tracker.MarkNotified("1"))

	// Second observation of the same completion must not notify again.
	assert.False(t, tracker.MarkNotified("1"))
	assert.Equal(t, 0, tracker.Len())
}

func TestTracker_MarkNotifiedUnknown(t *testing.T) {
	tracker := track.NewTracker()
	assert.False(t, tracker.MarkNotified("ghost"))
}

func TestTracker_Forget(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("1", 100, "Heat")
	tracker.Forget("1")

	assert.Equal(t, 0, tracker.Len())
	assert.False(t, tracker.MarkNotified("1"))

	// Forgetting twice is harmless.
	tracker.Forget("1")
}
