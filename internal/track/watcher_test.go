package track_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/track"
	"github.com/stretchr/testify/assert"
)

type fakeBackend struct {
	transfers map[string]*dispatch.Transfer
	err       error
}

func (b *fakeBackend) Add(ctx context.Context, locator, downloadDir string, start bool) (string, error) {
	return "", errors.New("not used")
}

func (b *fakeBackend) List(ctx context.Context) ([]*dispatch.Transfer, error) {
	return nil, errors.New("not used")
}

func (b *fakeBackend) Get(ctx context.Context, id string) (*dispatch.Transfer, error) {
	if b.err != nil {
		return nil, b.err
	}

	t, ok := b.transfers[id]
	if !ok {
		return nil, dispatch.ErrNotFound
	}

	return t, nil
}

func (b *fakeBackend) Remove(ctx context.Context, id string) error {
	return errors.New("not used")
}

type sentNote struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	sent []sentNote
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	if n.err != nil {
		return n.err
	}

	n.sent = append(n.sent, sentNote{chatID: chatID, text: text})

	return nil
}

func TestWatcher_NotifiesOnceOnCompletion(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("5", 42, "Heat 1995")

	backend := &fakeBackend{transfers: map[string]*dispatch.Transfer{
		"5": {ID: "5", Name: "Heat.1995.720p", Status: dispatch.StatusSeeding, Progress: 100},
	}}
	notifier := &fakeNotifier{}

	watcher := track.NewWatcher(tracker, backend, notifier, time.Minute, nil)

	// The transfer stays visible as seeding across several cycles; only the
	// first one may announce it.
	watcher.Poll(context.Background())
	watcher.Poll(context.Background())
	watcher.Poll(context.Background())

	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, int64(42), notifier.sent[0].chatID)
	assert.Contains(t, notifier.sent[0].text, "Heat 1995")
	assert.Equal(t, 0, tracker.Len())
}

func TestWatcher_UnfinishedTransferStaysTracked(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("5", 42, "Heat")

	backend := &fakeBackend{transfers: map[string]*dispatch.Transfer{
		"5": {ID: "5", Status: dispatch.StatusDownloading, Progress: 61},
	}}
	notifier := &fakeNotifier{}

	track.NewWatcher(tracker, backend, notifier, time.Minute, nil).Poll(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Equal(t, 1, tracker.Len())
}

func TestWatcher_BackendFailureKeepsRecords(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("5", 42, "Heat")

	backend := &fakeBackend{err: fmt.Errorf("connection refused")}
	notifier := &fakeNotifier{}
	watcher := track.NewWatcher(tracker, backend, notifier, time.Minute, nil)

	watcher.Poll(context.Background())
	watcher.Poll(context.Background())

	// Unreachable cycles neither notify nor drop anything.
	assert.Empty(t, notifier.sent)
	assert.Equal(t, 1, tracker.Len())

	// Once the backend recovers the completion still announces.
	backend.err = nil
	backend.transfers = map[string]*dispatch.Transfer{
		"5": {ID: "5", Status: dispatch.StatusSeeding, Progress: 100},
	}

	watcher.Poll(context.Background())
	assert.Len(t, notifier.sent, 1)
}

func TestWatcher_RemovedTransferDroppedSilently(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("5", 42, "Heat")

	backend := &fakeBackend{transfers: map[string]*dispatch.Transfer{}}
	notifier := &fakeNotifier{}

	track.NewWatcher(tracker, backend, notifier, time.Minute, nil).Poll(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Equal(t, 0, tracker.Len())
}

func TestWatcher_StoppedAtFullProgressCounts(t *testing.T) {
	tracker := track.NewTracker()
	tracker.Track("5", 42, "")

	backend := &fakeBackend{transfers: map[string]*dispatch.Transfer{
		"5": {ID: "5", Name: "fallback name", Status: dispatch.StatusStopped, Progress: 100},
	}}
	notifier := &fakeNotifier{}

	track.NewWatcher(tracker, backend, notifier, time.Minute, nil).Poll(context.Background())

	assert.Len(t, notifier.sent, 1)
	// Empty tracked title falls back to the backend's name.
	assert.Contains(t, notifier.sent[0].text, "fallback name")
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	tracker := track.NewTracker()
	backend := &fakeBackend{transfers: map[string]*dispatch.Transfer{}}
	watcher := track.NewWatcher(tracker, backend, &fakeNotifier{}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- watcher.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
