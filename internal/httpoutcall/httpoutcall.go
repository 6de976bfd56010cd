// Package httpoutcall wraps hashicorp/go-retryablehttp with the
// determinism transform that multi-provider HTTP outcalls need: before
// a response is handed to the consensus/retry layer, non-deterministic
// headers (Date, Set-Cookie, request ids, varying whitespace) are
// stripped so that two providers answering the same logical query don't
// fail a byte-equality consensus check over cosmetic differences.
// Grounded on the retry/backoff plumbing used in AKJUS-bsc-erigon and
// ethereum-go-ethereum (both carry hashicorp/go-retryablehttp and
// cenkalti/backoff/v4 for RPC-provider resilience). No other package in
// this module imports it; internal/confirm and internal/deposit reach
// their chains through internal/chainadapter/rpc.
package httpoutcall

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// nondeterministicHeaders are stripped from every response before it is
// compared across providers.
var nondeterministicHeaders = []string{
	"Date", "Set-Cookie", "X-Request-Id", "X-Amzn-Trace-Id", "Via",
	"Server", "Cf-Ray", "Strict-Transport-Security",
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// Client performs HTTP outcalls with retryablehttp-managed retries and
// returns deterministic bodies, suitable for feeding a multi-provider
// consensus check.
type Client struct {
	http *retryablehttp.Client
}

// New builds a Client. maxRetries bounds retryablehttp's retry count;
// backoffCeiling bounds the maximum single wait between attempts.
func New(maxRetries int, backoffCeiling time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.Logger = nil
	rc.Backoff = func(min, max time.Duration, attempt int, resp *http.Response) time.Duration {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = min
		b.MaxInterval = backoffCeiling
		b.MaxElapsedTime = 0
		var d time.Duration
		for i := 0; i <= attempt; i++ {
			d = b.NextBackOff()
		}
		if d > backoffCeiling {
			d = backoffCeiling
		}
		return d
	}
	return &Client{http: rc}
}

// Do performs req and returns its status, deterministic headers/body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	rreq, err := retryablehttp.FromRequest(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(rreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       canonicalizeBody(body),
	}, nil
}

// Response is the determinism-normalized shape of an HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// canonicalizeBody collapses runs of horizontal whitespace and trims
// trailing newlines, so two providers' JSON bodies that differ only in
// formatting compare equal.
func canonicalizeBody(body []byte) []byte {
	collapsed := whitespaceRun.ReplaceAll(body, []byte(" "))
	return bytes.TrimRight(collapsed, "\r\n \t")
}

// StripNondeterministicHeaders removes headers known to vary between
// otherwise-identical responses, for callers that need the header map
// itself (most outcall consumers only need Response.Body).
func StripNondeterministicHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range nondeterministicHeaders {
		out.Del(k)
	}
	return out
}
