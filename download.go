package ecat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
)

// DownloadOpts bounds a single candidate download.
type DownloadOpts struct {
	MaxBytes int64         // max response body size (default: 20MB)
	Timeout  time.Duration // per-request timeout (default: 30s)
}

const (
	defaultMaxBytes = 20 << 20 // camera JPEGs, not thumbnails
	defaultTimeout  = 30 * time.Second
)

// DownloadResult holds downloaded image data.
type DownloadResult struct {
	Data     []byte
	MIMEType string
}

// Download fetches an image from url. Recoverable failures (non-200,
// non-image content type, truncated body) return a nil result and no error;
// only an unusable request is reported as an error.
func (c *Config) Download(ctx context.Context, url string, opts DownloadOpts) (*DownloadResult, error) {
	c.defaults()

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req) //nolint:gosec // URL list is supplied by the operator
	if err != nil {
		slog.Debug("ecat: download failed", "url", url, "error", err.Error())
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("ecat: download status", "url", url, "status", resp.StatusCode)
		return nil, nil
	}

	ct := resp.Header.Get("Content-Type")
	// "image/jpeg; charset=utf-8" → "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if !strings.HasPrefix(ct, "image/") {
		slog.Debug("ecat: not an image", "url", url, "content_type", ct)
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil || len(data) == 0 {
		return nil, nil
	}

	return &DownloadResult{Data: data, MIMEType: ct}, nil
}

// URLSource downloads candidates one at a time, in list order. A URL that
// cannot be fetched yields a candidate without data, which the scan records
// as unreadable.
type URLSource struct {
	cfg  *Config
	urls []string
	opts DownloadOpts
	pos  int
}

// NewURLSource prepares a source over urls; blank entries and "#" comments
// are dropped so a plain text list can be passed straight in.
func (c *Config) NewURLSource(urls []string, opts DownloadOpts) *URLSource {
	var clean []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "#") {
			continue
		}
		clean = append(clean, u)
	}
	return &URLSource{cfg: c, urls: clean, opts: opts}
}

func (s *URLSource) Next(ctx context.Context) (*CandidateImage, error) {
	if s.pos >= len(s.urls) {
		return nil, io.EOF
	}
	u := s.urls[s.pos]
	s.pos++

	cand := &CandidateImage{ID: urlID(u)}
	res, err := s.cfg.Download(ctx, u, s.opts)
	if err != nil {
		slog.Warn("ecat: skipping url", "url", u, "error", err.Error())
		return cand, nil
	}
	if res != nil {
		cand.Data = res.Data
	}
	return cand, nil
}

func (s *URLSource) Len() int { return len(s.urls) }

// urlID keeps the last path element so reports stay readable; the full URL
// is used when the path is empty.
func urlID(u string) string {
	trimmed := u
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	slash := strings.IndexByte(trimmed, '/')
	if slash < 0 {
		return u
	}
	base := path.Base(trimmed[slash:])
	if base == "/" || base == "." || base == "" {
		return u
	}
	return base
}
