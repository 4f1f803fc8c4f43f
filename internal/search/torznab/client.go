package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/italolelis/torrent_finder/internal/logctx"
	"github.com/italolelis/torrent_finder/internal/search"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; TorrentFinder/1.0)"

// Client queries a Torznab endpoint and parses results into candidates.
type Client struct {
	BaseURL string
	APIKey  string

	httpClient *http.Client
	debug      bool

	mu         sync.Mutex
	lastCall   time.Time
	minDelay   time.Duration
	lastRaw    []byte
	sleep      func(time.Duration)
}

// NewClient builds a Torznab client with a bounded request timeout and a
// minimum delay between consecutive calls, per the feed's implicit rate limit.
func NewClient(baseURL, apiKey string, timeout, minDelay time.Duration, debug bool) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		minDelay:   minDelay,
		debug:      debug,
		sleep:      time.Sleep,
	}
}

type feedAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type feedEnclosure struct {
	URL string `xml:"url,attr"`
}

type feedItem struct {
	Title     string         `xml:"title"`
	Link      string         `xml:"link"`
	GUID      string         `xml:"guid"`
	PubDate   string         `xml:"pubDate"`
	Size      string         `xml:"size"`
	Category  string         `xml:"category"`
	Enclosure *feedEnclosure `xml:"enclosure"`
	Attrs     []feedAttr     `xml:"attr"`
}

type feedDoc struct {
	Items []feedItem `xml:"channel>item"`
}

// Search runs one query against the feed, returning a ranked result set.
// Categories are Torznab category codes; more than one combines by union.
func (c *Client) Search(ctx context.Context, query string, categories []string) (*search.ResultSet, error) {
	logger := logctx.LoggerFromContext(ctx).With("query", query)

	c.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	req.URL.RawQuery = c.buildParams(query, categories).Encode()
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.7")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("feed request failed", "err", err)

		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	c.rememberRaw(body)

	if resp.StatusCode != http.StatusOK {
		logger.Warn("feed returned non-200", "status", resp.StatusCode)

		return nil, &search.MalformedResponseError{StatusCode: resp.StatusCode}
	}

	var doc feedDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		logger.Warn("feed returned non-XML body")

		return nil, &search.MalformedResponseError{StatusCode: resp.StatusCode, Err: err}
	}

	candidates := parseItems(doc.Items, query)

	if c.debug {
		logger.Info("feed raw items", "raw_count", len(doc.Items), "kept_count", len(candidates))
	}

	if len(candidates) == 0 {
		return nil, search.ErrNoResults
	}

	return &search.ResultSet{
		Query:      query,
		Candidates: search.Rank(candidates),
	}, nil
}

// LastRawResponse echoes the raw body of the most recent feed response.
// Diagnostic side channel for empty result sets; only populated in debug mode.
func (c *Client) LastRawResponse() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastRaw
}

func (c *Client) rememberRaw(body []byte) {
	if !c.debug {
		return
	}

	c.mu.Lock()
	c.lastRaw = body
	c.mu.Unlock()
}

// throttle enforces the minimum delay between consecutive feed calls from
// this process.
func (c *Client) throttle() {
	c.mu.Lock()

	now := time.Now()
	wait := c.minDelay - now.Sub(c.lastCall)
	c.lastCall = now

	if wait > 0 {
		c.lastCall = now.Add(wait)
	}

	c.mu.Unlock()

	if wait > 0 {
		c.sleep(wait)
	}
}

func (c *Client) buildParams(query string, categories []string) url.Values {
	params := url.Values{}
	params.Set("apikey", c.APIKey)
	params.Set("t", "search")
	params.Set("q", query)

	if len(categories) > 0 {
		params.Set("cat", strings.Join(categories, ","))
	}

	return params
}

func parseItems(items []feedItem, query string) []search.Candidate {
	var candidates []search.Candidate

	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title != "" && !titleMatches(query, title) {
			continue
		}

		magnet := extractMagnet(item)
		if magnet == "" {
			continue
		}

		cand := search.Candidate{
			Title:    title,
			Magnet:   magnet,
			Size:     parseSize(item),
			Category: strings.TrimSpace(item.Category),
			Source:   "torznab",
		}

		if ts, err := time.Parse(time.RFC1123Z, strings.TrimSpace(item.PubDate)); err == nil {
			cand.Published = ts
		}

		for _, attr := range item.Attrs {
			value := safeInt(attr.Value)

			switch strings.ToLower(attr.Name) {
			case "seeders":
				cand.Seeders = value
			case "leechers", "peers":
				cand.Leechers = value
			}
		}

		candidates = append(candidates, cand)
	}

	return candidates
}

// titleMatches checks that every meaningful query token (3+ chars) appears in
// the candidate title.
func titleMatches(query, title string) bool {
	normalized := strings.ToLower(title)

	for _, token := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(token) < 3 {
			continue
		}

		if !strings.Contains(normalized, token) {
			return false
		}
	}

	return true
}

// extractMagnet plucks the magnet link from wherever the indexer hid it:
// enclosure, link, guid, or a torznab attribute.
func extractMagnet(item feedItem) string {
	if item.Enclosure != nil && isMagnet(item.Enclosure.URL) {
		return strings.TrimSpace(item.Enclosure.URL)
	}

	if isMagnet(item.Link) {
		return strings.TrimSpace(item.Link)
	}

	if isMagnet(item.GUID) {
		return strings.TrimSpace(item.GUID)
	}

	for _, attr := range item.Attrs {
		switch strings.ToLower(attr.Name) {
		case "magneturl", "magneturi", "magnet":
			if isMagnet(attr.Value) {
				return strings.TrimSpace(attr.Value)
			}
		}
	}

	return ""
}

func isMagnet(value string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(value)), "magnet:")
}

func parseSize(item feedItem) int64 {
	if size, err := strconv.ParseInt(strings.TrimSpace(item.Size), 10, 64); err == nil && size > 0 {
		return size
	}

	for _, attr := range item.Attrs {
		if strings.EqualFold(attr.Name, "size") {
			if size, err := strconv.ParseInt(strings.TrimSpace(attr.Value), 10, 64); err == nil && size > 0 {
				return size
			}
		}
	}

	return 0
}

// safeInt coerces seed and peer counts, shrugging off commas and garbage.
// Negative counts clamp to zero.
func safeInt(value string) int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")

	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0
	}

	return n
}
