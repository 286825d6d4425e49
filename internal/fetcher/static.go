package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxPageBytes = 8 << 20

// StaticBrowser fetches server-rendered HTML over plain HTTP. It does not run
// scripts, so it only suits pages whose table is present in the response.
type StaticBrowser struct {
	client    *http.Client
	userAgent string

	mu   sync.Mutex
	page string
	ok   bool
}

// NewStaticBrowser constructs an HTTP renderer.
func NewStaticBrowser(timeout time.Duration, userAgent string) *StaticBrowser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StaticBrowser{
		client:    &http.Client{Timeout: timeout},
		userAgent: strings.TrimSpace(userAgent),
	}
}

// Load performs a GET and keeps the body as the current document.
func (b *StaticBrowser) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	b.mu.Lock()
	b.page, b.ok = string(body), true
	b.mu.Unlock()
	return nil
}

// HTML returns the body of the last successful Load.
func (b *StaticBrowser) HTML(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return "", errors.New("no page loaded")
	}
	return b.page, nil
}

// Close is a no-op.
func (b *StaticBrowser) Close() error {
	return nil
}

// DocumentBrowser serves a fixed HTML document, e.g. a page saved to disk.
type DocumentBrowser struct {
	Document string
}

// Load ignores the url.
func (d DocumentBrowser) Load(ctx context.Context, url string) error {
	return ctx.Err()
}

// HTML returns the fixed document.
func (d DocumentBrowser) HTML(ctx context.Context) (string, error) {
	return d.Document, nil
}

// Close is a no-op.
func (d DocumentBrowser) Close() error {
	return nil
}

var (
	_ Browser = (*StaticBrowser)(nil)
	_ Browser = DocumentBrowser{}
)
