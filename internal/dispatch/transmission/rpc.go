package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/logctx"
)

const sessionHeader = "X-Transmission-Session-Id"

// Transmission native status codes, per the RPC spec.
const (
	rpcStatusStopped = iota
	rpcStatusCheckWait
	rpcStatusCheck
	rpcStatusDownloadWait
	rpcStatusDownload
	rpcStatusSeedWait
	rpcStatusSeed
)

// RPCClient talks to the Transmission daemon over its JSON RPC endpoint.
// The session token handshake (409 + X-Transmission-Session-Id) is handled
// transparently with a single retry. One instance is shared by the
// conversation engine, the completion watcher, and the status API, so the
// session id is guarded for concurrent calls.
type RPCClient struct {
	URL      string
	Username string
	Password string

	httpClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewRPCClient builds a client for http://host:port/transmission/rpc.
func NewRPCClient(host string, port int, username, password string) *RPCClient {
	return &RPCClient{
		URL:        fmt.Sprintf("http://%s:%d/transmission/rpc", host, port),
		Username:   username,
		Password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ dispatch.TransferClient = (*RPCClient)(nil)

type rpcRequest struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type rpcTorrent struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Status      int     `json:"status"`
	PercentDone float64 `json:"percentDone"`
	ErrorString string  `json:"errorString"`
	ETA         int64   `json:"eta"` // -1 unavailable, -2 unknown
}

func (t rpcTorrent) toTransfer() *dispatch.Transfer {
	status := mapRPCStatus(t.Status)
	if t.ErrorString != "" {
		status = dispatch.StatusError
	}

	return &dispatch.Transfer{
		ID:       strconv.FormatInt(t.ID, 10),
		Name:     t.Name,
		Status:   status,
		Progress: t.PercentDone * 100.0,
		ETA:      t.ETA,
	}
}

func mapRPCStatus(code int) dispatch.Status {
	switch code {
	case rpcStatusStopped:
		return dispatch.StatusStopped
	case rpcStatusCheckWait, rpcStatusCheck:
		return dispatch.StatusChecking
	case rpcStatusDownloadWait, rpcStatusSeedWait:
		return dispatch.StatusQueued
	case rpcStatusDownload:
		return dispatch.StatusDownloading
	case rpcStatusSeed:
		return dispatch.StatusSeeding
	default:
		return dispatch.StatusStopped
	}
}

// Add sends torrent-add and returns the new transfer id. Duplicate adds
// resolve to the existing transfer's id, matching daemon behavior.
func (c *RPCClient) Add(ctx context.Context, locator, downloadDir string, start bool) (string, error) {
	args := map[string]any{
		"filename": locator,
		"paused":   !start,
	}
	if downloadDir != "" {
		args["download-dir"] = downloadDir
	}

	resp, err := c.call(ctx, "torrent-add", args)
	if err != nil {
		return "", err
	}

	if resp.Result != "success" {
		if strings.Contains(strings.ToLower(resp.Result), "torrent") || strings.Contains(strings.ToLower(resp.Result), "magnet") {
			return "", &dispatch.InvalidLocatorError{Locator: locator, Reason: resp.Result}
		}

		return "", fmt.Errorf("torrent-add failed: %s", resp.Result)
	}

	var added struct {
		TorrentAdded     *rpcTorrent `json:"torrent-added"`
		TorrentDuplicate *rpcTorrent `json:"torrent-duplicate"`
	}
	if err := json.Unmarshal(resp.Arguments, &added); err != nil {
		return "", fmt.Errorf("failed to decode torrent-add response: %w", err)
	}

	torrent := added.TorrentAdded
	if torrent == nil {
		torrent = added.TorrentDuplicate
	}

	if torrent == nil {
		return "", &dispatch.InvalidLocatorError{Locator: locator, Reason: "daemon did not create a transfer"}
	}

	return strconv.FormatInt(torrent.ID, 10), nil
}

// List fetches all transfers known to the daemon.
func (c *RPCClient) List(ctx context.Context) ([]*dispatch.Transfer, error) {
	return c.torrentGet(ctx, nil)
}

// Get fetches a single transfer by id.
func (c *RPCClient) Get(ctx context.Context, id string) (*dispatch.Transfer, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer id %q: %w", id, err)
	}

	transfers, err := c.torrentGet(ctx, []int64{numericID})
	if err != nil {
		return nil, err
	}

	if len(transfers) == 0 {
		return nil, dispatch.ErrNotFound
	}

	return transfers[0], nil
}

// Remove deletes a transfer, keeping downloaded data on disk.
func (c *RPCClient) Remove(ctx context.Context, id string) error {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid transfer id %q: %w", id, err)
	}

	// The daemon silently ignores unknown ids, so check existence first to
	// honor the NotFound contract.
	if _, err := c.Get(ctx, id); err != nil {
		return err
	}

	resp, err := c.call(ctx, "torrent-remove", map[string]any{
		"ids":               []int64{numericID},
		"delete-local-data": false,
	})
	if err != nil {
		return err
	}

	if resp.Result != "success" {
		return fmt.Errorf("torrent-remove failed: %s", resp.Result)
	}

	return nil
}

func (c *RPCClient) torrentGet(ctx context.Context, ids []int64) ([]*dispatch.Transfer, error) {
	args := map[string]any{
		"fields": []string{"id", "name", "status", "percentDone", "errorString", "eta"},
	}
	if len(ids) > 0 {
		args["ids"] = ids
	}

	resp, err := c.call(ctx, "torrent-get", args)
	if err != nil {
		return nil, err
	}

	if resp.Result != "success" {
		return nil, fmt.Errorf("torrent-get failed: %s", resp.Result)
	}

	var payload struct {
		Torrents []rpcTorrent `json:"torrents"`
	}
	if err := json.Unmarshal(resp.Arguments, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode torrent-get response: %w", err)
	}

	transfers := make([]*dispatch.Transfer, 0, len(payload.Torrents))
	for _, t := range payload.Torrents {
		transfers = append(transfers, t.toTransfer())
	}

	return transfers, nil
}

func (c *RPCClient) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

func (c *RPCClient) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *RPCClient) call(ctx context.Context, method string, args map[string]any) (*rpcResponse, error) {
	resp, retry, err := c.doOnce(ctx, method, args)
	if retry {
		// 409 handed us a fresh session id; resend once.
		resp, _, err = c.doOnce(ctx, method, args)
	}

	return resp, err
}

// doOnce performs a single RPC round trip. The middle return value reports
// that the daemon demanded a new session id.
func (c *RPCClient) doOnce(ctx context.Context, method string, args map[string]any) (*rpcResponse, bool, error) {
	logger := logctx.LoggerFromContext(ctx).With("method", method)

	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build rpc request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if id := c.session(); id != "" {
		req.Header.Set(sessionHeader, id)
	}

	if c.Username != "" || c.Password != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("rpc request failed", "err", err)

		return nil, false, &dispatch.UnreachableError{Operation: method, Err: err}
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusConflict:
		c.setSession(httpResp.Header.Get(sessionHeader))
		logger.Debug("rotated transmission session id")

		return nil, true, fmt.Errorf("session id expired for %s", method)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, false, &dispatch.AuthError{Operation: method}
	}

	if httpResp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(httpResp.Body)

		return nil, false, &dispatch.UnreachableError{
			Operation: method,
			Err:       fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(b)),
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&rpcResp); err != nil {
		return nil, false, fmt.Errorf("failed to decode rpc response: %w", err)
	}

	return &rpcResp, false, nil
}
