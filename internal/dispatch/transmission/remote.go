package transmission

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/logctx"
)

const remoteBinary = "transmission-remote"

// RemoteClient drives the transmission-remote CLI. Its output is a loose
// text format, so parsing here is strictly defensive: unknown lines are
// skipped, not fatal.
type RemoteClient struct {
	Host string
	Port int
	Auth string // "user:pass", empty when the daemon is open

	runner func(ctx context.Context, args ...string) (string, error)
}

// NewRemoteClient builds a CLI-backed client for host:port.
func NewRemoteClient(host string, port int, username, password string) *RemoteClient {
	c := &RemoteClient{Host: host, Port: port}
	if username != "" || password != "" {
		c.Auth = username + ":" + password
	}

	c.runner = c.exec

	return c
}

var _ dispatch.TransferClient = (*RemoteClient)(nil)

func (c *RemoteClient) exec(ctx context.Context, args ...string) (string, error) {
	argv := []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
	if c.Auth != "" {
		argv = append(argv, "--auth", c.Auth)
	}

	argv = append(argv, args...)

	out, err := exec.CommandContext(ctx, remoteBinary, argv...).CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "unauthorized") {
			return "", &dispatch.AuthError{Operation: strings.Join(args, " "), Err: err}
		}

		return "", &dispatch.UnreachableError{
			Operation: strings.Join(args, " "),
			Err:       fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))),
		}
	}

	return string(out), nil
}

// Add runs --add and resolves the new transfer id by re-listing, since the
// CLI does not report the id it assigned.
func (c *RemoteClient) Add(ctx context.Context, locator, downloadDir string, start bool) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	args := []string{"--add", locator}
	if downloadDir != "" {
		args = append(args, "--download-dir", downloadDir)
	}

	if start {
		args = append(args, "--start")
	} else {
		args = append(args, "--no-start")
	}

	out, err := c.runner(ctx, args...)
	if err != nil {
		return "", err
	}

	if strings.Contains(strings.ToLower(out), "invalid or corrupt") {
		return "", &dispatch.InvalidLocatorError{Locator: locator, Reason: strings.TrimSpace(out)}
	}

	logger.Debug("transmission-remote add output", "output", strings.TrimSpace(out))

	transfers, err := c.List(ctx)
	if err != nil {
		return "", fmt.Errorf("added transfer but failed to resolve its id: %w", err)
	}

	if id := matchByDisplayName(transfers, locator); id != "" {
		return id, nil
	}

	// Fall back to the highest id, which the daemon assigns to the newest
	// transfer.
	var best string

	var bestID int64 = -1

	for _, t := range transfers {
		if n, err := strconv.ParseInt(t.ID, 10, 64); err == nil && n > bestID {
			bestID = n
			best = t.ID
		}
	}

	if best == "" {
		return "", fmt.Errorf("added transfer but none visible in list output")
	}

	return best, nil
}

// matchByDisplayName matches a freshly added magnet to a listed transfer via
// the magnet's dn= display name.
func matchByDisplayName(transfers []*dispatch.Transfer, locator string) string {
	parsed, err := url.Parse(locator)
	if err != nil || parsed.Scheme != "magnet" {
		return ""
	}

	name := parsed.Query().Get("dn")
	if name == "" {
		return ""
	}

	normalized := normalizeTitle(name)

	for _, t := range transfers {
		if normalizeTitle(t.Name) == normalized {
			return t.ID
		}
	}

	return ""
}

func normalizeTitle(value string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9':
			return r
		case 'A' <= r && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, value)

	return strings.Join(strings.Fields(mapped), " ")
}

// List runs --torrent all --info and parses the detail blocks.
func (c *RemoteClient) List(ctx context.Context) ([]*dispatch.Transfer, error) {
	out, err := c.runner(ctx, "--torrent", "all", "--info")
	if err != nil {
		return nil, err
	}

	return parseInfoBlocks(out), nil
}

// Get reads a single transfer's detail block.
func (c *RemoteClient) Get(ctx context.Context, id string) (*dispatch.Transfer, error) {
	out, err := c.runner(ctx, "--torrent", id, "--info")
	if err != nil {
		return nil, err
	}

	transfers := parseInfoBlocks(out)
	for _, t := range transfers {
		if t.ID == id {
			return t, nil
		}
	}

	// Some builds omit the Id line; a single block for a single-id query is
	// unambiguous.
	if len(transfers) == 1 {
		return transfers[0], nil
	}

	return nil, dispatch.ErrNotFound
}

// Remove deletes a transfer, keeping local data.
func (c *RemoteClient) Remove(ctx context.Context, id string) error {
	if _, err := c.Get(ctx, id); err != nil {
		return err
	}

	_, err := c.runner(ctx, "--torrent", id, "--remove")

	return err
}

// parseInfoBlocks walks "Key: value" lines, flushing a transfer whenever a
// blank line or a repeated NAME section shows up. The CLI contract is weak,
// so anything unrecognized is dropped on the floor.
func parseInfoBlocks(out string) []*dispatch.Transfer {
	var transfers []*dispatch.Transfer

	current := map[string]string{}

	flush := func() {
		defer func() { current = map[string]string{} }()

		name := current["name"]
		if name == "" {
			return
		}

		t := &dispatch.Transfer{
			ID:     current["id"],
			Name:   name,
			Status: dispatch.NormalizeStatus(current["status"]),
			ETA:    parseRemoteETA(current["eta"]),
		}

		if current["error"] != "" && !strings.EqualFold(current["error"], "none") {
			t.Status = dispatch.StatusError
		}

		if pct, err := strconv.ParseFloat(current["percent"], 64); err == nil {
			t.Progress = pct
		}

		transfers = append(transfers, t)
	}

	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			flush()

			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		mapped := mapRemoteKey(strings.ToLower(strings.TrimSpace(key)))
		if mapped == "" {
			continue
		}

		value = strings.TrimSpace(value)

		if mapped == "name" && current["name"] != "" {
			flush()
		}

		if mapped == "percent" {
			value = strings.TrimSpace(strings.TrimSuffix(value, "%"))
		}

		if mapped == "id" {
			// "Id: 12 (of 30)" on some builds; keep the leading number.
			if fields := strings.Fields(value); len(fields) > 0 {
				value = fields[0]
			}
		}

		current[mapped] = value
	}

	flush()

	return transfers
}

func mapRemoteKey(key string) string {
	switch key {
	case "name", "torrent":
		return "name"
	case "id":
		return "id"
	case "percent done", "progress":
		return "percent"
	case "state", "status":
		return "status"
	case "error":
		return "error"
	case "eta":
		return "eta"
	default:
		return ""
	}
}

// parseRemoteETA reads the CLI's Eta wording, "4 minutes (240 seconds)" or a
// bare count. Anything unparseable ("Unknown", "Done", missing) is -1.
func parseRemoteETA(value string) int64 {
	if open := strings.LastIndex(value, "("); open >= 0 {
		value = strings.TrimSuffix(strings.TrimSpace(value[open+1:]), ")")
	}

	fields := strings.Fields(value)
	if len(fields) == 0 {
		return -1
	}

	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		return -1
	}

	if len(fields) > 1 {
		switch strings.ToLower(strings.TrimSuffix(fields[1], "s")) {
		case "minute", "min":
			n *= 60
		case "hour", "hr":
			n *= 3600
		case "day":
			n *= 86400
		}
	}

	return n
}
