package sources

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"gdpetl/internal/etl"
)

// ── HTTP Fetcher ────────────────────────────────────────────
// Downloads the source document. file:// URLs are read from disk, which
// allows running against a saved copy of the page.

// HTTPOptions configures the fetcher.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// HTTPFetcher implements etl.Fetcher with resty.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher. A zero timeout means 30 seconds.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().SetTimeout(timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if path, ok := strings.CutPrefix(url, "file://"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &etl.FetchError{URL: url, Err: err}
		}
		return data, nil
	}

	res, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &etl.FetchError{URL: url, Err: err}
	}
	if res.IsError() {
		body := res.Body()
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, &etl.FetchError{
			URL:        url,
			StatusCode: res.StatusCode(),
			Err:        fmt.Errorf("%s: %s", res.Status(), strings.TrimSpace(string(body))),
		}
	}
	return res.Body(), nil
}
