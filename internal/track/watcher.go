package track

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/logctx"
	"github.com/italolelis/torrent_finder/internal/telemetry"
)

// Notifier pushes a completion message to the chat that started the transfer.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Watcher polls the dispatch backend for tracked transfers and announces each
// completion exactly once. Backend failures during a cycle are swallowed and
// retried on the next tick; they never stop the loop or drop records.
type Watcher struct {
	tracker   *Tracker
	backend   dispatch.TransferClient
	notifier  Notifier
	interval  time.Duration
	telemetry *telemetry.Telemetry
}

func NewWatcher(tracker *Tracker, backend dispatch.TransferClient, notifier Notifier, interval time.Duration, tel *telemetry.Telemetry) *Watcher {
	return &Watcher{
		tracker:   tracker,
		backend:   backend,
		notifier:  notifier,
		interval:  interval,
		telemetry: tel,
	}
}

// Run blocks until the context is cancelled, polling on a fixed interval.
func (w *Watcher) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("completion watcher panic",
				"panic", r,
				"stack", string(debug.Stack()))

			if ctx.Err() == nil {
				time.Sleep(time.Second)
				go w.Run(ctx)
			}
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("completion watcher shutting down")

			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one watch cycle. Exported so tests can drive cycles directly.
func (w *Watcher) Poll(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	for _, record := range w.tracker.Pending() {
		transfer, err := w.backend.Get(ctx, record.ID)

		switch {
		case errors.Is(err, dispatch.ErrNotFound):
			// Removed out of band; nothing to announce.
			logger.Debug("tracked transfer gone from backend", "transfer_id", record.ID)
			w.tracker.Forget(record.ID)

			continue
		case err != nil:
			logger.Warn("completion poll failed, will retry next cycle", "transfer_id", record.ID, "err", err)

			if w.telemetry != nil {
				w.telemetry.RecordWatcherError()
			}

			continue
		}

		if !transfer.Finished() {
			continue
		}

		if !w.tracker.MarkNotified(record.ID) {
			continue
		}

		title := record.Title
		if title == "" {
			title = transfer.Name
		}

		if err := w.notifier.Notify(ctx, record.ChatID, "✅ Torrent ready: "+title); err != nil {
			logger.Error("failed to send completion notification",
				"transfer_id", record.ID,
				"chat_id", record.ChatID,
				"err", err)

			continue
		}

		if w.telemetry != nil {
			w.telemetry.RecordNotification()
		}
	}
}
