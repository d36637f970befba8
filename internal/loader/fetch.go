package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"inferd/internal/common/fsutil"
)

// Fetcher retrieves the bytes behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// HTTPFetcher fetches http and https locators.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: status=%d", u.Redacted(), res.StatusCode)
	}
	return io.ReadAll(res.Body)
}

// FileFetcher reads file locators from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(u.Path)
}

// ParseLocator parses a source locator. Strings without a scheme are local
// paths and become file URLs.
func ParseLocator(src string) (*url.URL, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty source locator")
	}
	if !strings.Contains(src, "://") {
		return fsutil.FileURL(src)
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse source %q: %w", src, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}
