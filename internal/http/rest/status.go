package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/logctx"
	"github.com/italolelis/torrent_finder/internal/track"
)

// TransferView is the wire shape of one transfer in the status listing.
type TransferView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Finished bool    `json:"finished"`
}

type statusResponse struct {
	Transfers []TransferView `json:"transfers"`
	Tracked   int            `json:"tracked"`
	Timestamp time.Time      `json:"timestamp"`
}

// StatusHandler exposes a read-only HTTP view over the dispatch backend, for
// health probes and quick inspection next to the metrics endpoint.
type StatusHandler struct {
	backend dispatch.TransferClient
	tracker *track.Tracker
}

func NewStatusHandler(backend dispatch.TransferClient, tracker *track.Tracker) *StatusHandler {
	return &StatusHandler{backend: backend, tracker: tracker}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)
	r.Get("/transfers", h.HandleTransfers)

	return r
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// HandleTransfers lists every transfer the backend knows about.
func (h *StatusHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	transfers, err := h.backend.List(r.Context())
	if err != nil {
		logger.Error("failed to list transfers", "err", err)
		http.Error(w, "download client unavailable", http.StatusBadGateway)

		return
	}

	views := make([]TransferView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, TransferView{
			ID:       t.ID,
			Name:     t.Name,
			Status:   string(t.Status),
			Progress: t.Progress,
			Finished: t.Finished(),
		})
	}

	resp := statusResponse{
		Transfers: views,
		Tracked:   h.tracker.Len(),
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode response", "err", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
