package grib2grid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response body size limits.
// Real .idx files are ~200 KB; single messages are a few MB at most.
// These caps prevent OOM if a misbehaving server sends a huge body.
const (
	maxIdxBytes  = 10 << 20 // 10 MB
	maxGRIBBytes = 50 << 20 // 50 MB
)

// ErrNotInIndex reports that no inventory line matched the request.
var ErrNotInIndex = errors.New("not found in index")

// HTTPError is a non-success response from the inventory or GRIB2 host.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// DefaultBaseURL is the NOAA HRRR bucket used by HRRRURL.
const DefaultBaseURL = "https://noaa-hrrr-bdp-pds.s3.amazonaws.com"

// Client fetches single GRIB2 messages over HTTP using the wgrib2-style
// .idx inventory published next to each file.
type Client struct {
	HTTPClient *http.Client
}

// NewClient returns a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTPClient: &http.Client{Timeout: timeout}}
}

// HRRRURL returns the GRIB2 URL of an HRRR CONUS surface file for a model
// run (UTC) and forecast hour.
func HRRRURL(base string, run time.Time, fxx int) string {
	run = run.UTC()
	return fmt.Sprintf("%s/hrrr.%s/conus/hrrr.t%02dz.wrfsfcf%02d.grib2",
		strings.TrimRight(base, "/"), run.Format("20060102"), run.Hour(), fxx)
}

// IndexEntry is one line of a .idx inventory, e.g.
// "71:38448128:d=2024010112:TMP:2 m above ground:anl:".
type IndexEntry struct {
	Message int    // message number within the file
	Offset  int64  // first byte of the message
	End     int64  // last byte of the message, -1 when it runs to the end of the file
	Desc    string // the remaining fields
}

// rangeHeader returns the HTTP Range value covering the message.
func (e IndexEntry) rangeHeader() string {
	if e.End < 0 {
		return fmt.Sprintf("bytes=%d-", e.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", e.Offset, e.End)
}

// ParseIndex reads a .idx inventory. Offsets must increase from line to
// line; each message ends where the next one starts.
func ParseIndex(r io.Reader) ([]IndexEntry, error) {
	var entries []IndexEntry
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		num, rest, ok1 := strings.Cut(text, ":")
		off, desc, ok2 := strings.Cut(rest, ":")
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("index line %d: want msg:offset:fields, got %q", line, text)
		}
		msg, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("index line %d: message number: %w", line, err)
		}
		start, err := strconv.ParseInt(off, 10, 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("index line %d: bad offset %q", line, off)
		}
		if n := len(entries); n > 0 {
			if start <= entries[n-1].Offset {
				return nil, fmt.Errorf("index line %d: offset %d does not follow %d", line, start, entries[n-1].Offset)
			}
			entries[n-1].End = start - 1
		}
		entries = append(entries, IndexEntry{Message: msg, Offset: start, End: -1, Desc: desc})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	return entries, nil
}

// findEntry returns the first entry whose fields contain match.
func findEntry(entries []IndexEntry, match string) (IndexEntry, error) {
	for _, e := range entries {
		if strings.Contains(e.Desc, match) {
			return e, nil
		}
	}
	return IndexEntry{}, fmt.Errorf("%q %w", match, ErrNotInIndex)
}

// Index fetches and parses the inventory published next to gribURL.
func (c *Client) Index(ctx context.Context, gribURL string) ([]IndexEntry, error) {
	body, err := c.get(ctx, gribURL+".idx", "", maxIdxBytes)
	if err != nil {
		return nil, err
	}
	return ParseIndex(strings.NewReader(string(body)))
}

// FetchMessage fetches the first message of gribURL whose index line
// contains match, e.g. "TMP:2 m above ground". The fetched bytes must hold
// a complete message; anything after its declared length is dropped.
func (c *Client) FetchMessage(ctx context.Context, gribURL, match string) ([]byte, error) {
	entries, err := c.Index(ctx, gribURL)
	if err != nil {
		return nil, fmt.Errorf("index for %s: %w", gribURL, err)
	}
	e, err := findEntry(entries, match)
	if err != nil {
		return nil, err
	}
	raw, err := c.get(ctx, gribURL, e.rangeHeader(), maxGRIBBytes)
	if err != nil {
		return nil, fmt.Errorf("message %d: %w", e.Message, err)
	}
	s0, err := parseSection0(raw)
	if err != nil {
		return nil, fmt.Errorf("message %d at byte %d: %w", e.Message, e.Offset, err)
	}
	if s0.TotalLength > uint64(len(raw)) {
		return nil, fmt.Errorf("message %d: declares %d bytes, range returned %d", e.Message, s0.TotalLength, len(raw))
	}
	return raw[:s0.TotalLength], nil
}

// FetchGrid fetches one message and returns its Section 3.
func (c *Client) FetchGrid(ctx context.Context, gribURL, match string) ([]byte, error) {
	msg, err := c.FetchMessage(ctx, gribURL, match)
	if err != nil {
		return nil, err
	}
	return GridSection(msg)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// get reads at most limit bytes of url, optionally with a Range header.
func (c *Client) get(ctx context.Context, url, rng string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if rng != "" {
		req.Header.Set("Range", rng)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
