// Package httputil holds HTTP helpers shared by the outbound API clients.
package httputil

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"
)

// RetryBaseDelay is the first backoff after a 429. Tests override it.
var RetryBaseDelay = time.Second

const defaultMaxRetries = 3

// DoWithRetry executes req and retries on HTTP 429 with exponential backoff
// (RetryBaseDelay, then doubling). maxRetries <= 0 means the default (3).
// The last 429 response is returned once retries are exhausted so the caller
// can inspect it. A cancelled context during a wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := RetryBaseDelay << attempt
		log.Printf("[HTTP] %s rate limited, retrying in %v (attempt %d/%d)", req.URL.Host, backoff, attempt+1, maxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
