package prescription

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mediscanner/api/pkg/gateway/httpclient"
)

// FetchError reports an image that could not be downloaded.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to download image from URL: %s", e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads source images over HTTP.
type Fetcher struct {
	client   *http.Client
	attempts int
	maxBytes int64
}

func NewFetcher(timeout time.Duration, attempts int, maxBytes int64) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		client:   httpclient.New(timeout),
		attempts: attempts,
		maxBytes: maxBytes,
	}
}

// Fetch returns the body of url. Transient failures are retried; 4xx
// answers are not.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := httpclient.RetryIf(ctx, f.attempts, 200*time.Millisecond, httpclient.IsRetriable, func() error {
		var err error
		body, err = httpclient.Get(ctx, f.client, url, f.maxBytes)
		return err
	})
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}
