package track

import "sync"

// Record tracks one dispatched transfer until its completion is announced.
// ChatID and Title are immutable after creation; only the notified flag
// changes, and only under the tracker lock.
type Record struct {
	ID       string
	ChatID   int64
	Title    string
	Notified bool
}

// Tracker is the set of transfers awaiting a completion notification.
// Safe for concurrent use by the conversation engine and the watcher.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Track registers a dispatched transfer for completion watching.
func (t *Tracker) Track(id string, chatID int64, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[id] = &Record{ID: id, ChatID: chatID, Title: title}
}

// Forget drops a record, typically after the user removed the transfer.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, id)
}

// Pending snapshots every record that has not been notified yet.
func (t *Tracker) Pending() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := make([]Record, 0, len(t.records))

	for _, r := range t.records {
		if !r.Notified {
			pending = append(pending, *r)
		}
	}

	return pending
}

// MarkNotified flips the notified flag exactly once and drops the record.
// Returns false when the record is gone or already notified, so a completed
// transfer observed twice never notifies twice.
func (t *Tracker) MarkNotified(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok || r.Notified {
		return false
	}

	r.Notified = true
	delete(t.records, id)

	return true
}

// Len reports how many transfers are being tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.records)
}
