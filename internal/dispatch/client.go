package dispatch

import (
	"context"
	"strings"
)

// Status is the normalized transfer state vocabulary. Both transports map
// their native wording into this closed set.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusSeeding     Status = "seeding"
	StatusStopped     Status = "stopped"
	StatusChecking    Status = "checking"
	StatusError       Status = "error"
)

// Transfer is one download-client job as reported by the backend.
type Transfer struct {
	ID       string
	Name     string
	Status   Status
	Progress float64 // 0..100
	ETA      int64   // seconds remaining, negative when unknown
}

// Finished reports whether the transfer reached terminal success. Seeding
// means the payload is fully downloaded; a stopped transfer at 100% was
// completed and then paused by the client.
func (t *Transfer) Finished() bool {
	if t.Status == StatusSeeding {
		return true
	}

	return t.Status == StatusStopped && t.Progress >= 99.9
}

// TransferClient is the capability set shared by both Transmission
// transports. Selection between them is fixed at configuration time.
type TransferClient interface {
	// Add hands a locator to the backend and returns the backend-assigned
	// transfer id.
	Add(ctx context.Context, locator, downloadDir string, start bool) (string, error)
	// List returns every transfer known to the backend.
	List(ctx context.Context) ([]*Transfer, error)
	// Get returns one transfer by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Transfer, error)
	// Remove deletes one transfer by id, or ErrNotFound.
	Remove(ctx context.Context, id string) error
}

// NormalizeStatus folds a native Transmission status word into the closed
// Status set. Unknown wording defaults to stopped, the least alarming guess.
func NormalizeStatus(native string) Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "queued", "download wait", "downloadwait", "queued to download", "queued to seed", "seed wait", "seedwait":
		return StatusQueued
	case "downloading", "up & down", "up and down":
		return StatusDownloading
	case "seeding", "idle", "finished", "completed":
		return StatusSeeding
	case "stopped", "paused":
		return StatusStopped
	case "checking", "verifying", "will verify", "verify pending":
		return StatusChecking
	case "error":
		return StatusError
	default:
		return StatusStopped
	}
}
