package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/http/rest"
	"github.com/italolelis/torrent_finder/internal/track"
	"github.com/stretchr/testify/assert"
)

type stubBackend struct {
	transfers []*dispatch.Transfer
	err       error
}

func (b *stubBackend) Add(ctx context.Context, locator, downloadDir string, start bool) (string, error) {
	return "", errors.New("not used")
}

func (b *stubBackend) List(ctx context.Context) ([]*dispatch.Transfer, error) {
	return b.transfers, b.err
}

func (b *stubBackend) Get(ctx context.Context, id string) (*dispatch.Transfer, error) {
	return nil, dispatch.ErrNotFound
}

func (b *stubBackend) Remove(ctx context.Context, id string) error {
	return dispatch.ErrNotFound
}

func TestStatusHandler_Health(t *testing.T) {
	handler := rest.NewStatusHandler(&stubBackend{}, track.NewTracker())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusHandler_Transfers(t *testing.T) {
	backend := &stubBackend{transfers: []*dispatch.Transfer{
		{ID: "1", Name: "Heat", Status: dispatch.StatusDownloading, Progress: 61.5},
		{ID: "2", Name: "Severance", Status: dispatch.StatusSeeding, Progress: 100},
	}}

	tracker := track.NewTracker()
	tracker.Track("1", 42, "Heat")

	handler := rest.NewStatusHandler(backend, tracker)

	req := httptest.NewRequest(http.MethodGet, "/transfers", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transfers []rest.TransferView `json:"transfers"`
		Tracked   int                 `json:"tracked"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Len(t, resp.Transfers, 2)
	assert.Equal(t, "downloading", resp.Transfers[0].Status)
	assert.False(t, resp.Transfers[0].Finished)
	assert.True(t, resp.Transfers[1].Finished)
	assert.Equal(t, 1, resp.Tracked)
}

func TestStatusHandler_BackendDown(t *testing.T) {
	handler := rest.NewStatusHandler(&stubBackend{err: errors.New("connection refused")}, track.NewTracker())

	req := httptest.NewRequest(http.MethodGet, "/transfers", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
