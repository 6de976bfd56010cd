package httpoutcall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoReturnsCanonicalizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "abc123")
		w.Write([]byte("{  \"ok\":   true }\n\n"))
	}))
	defer srv.Close()

	c := New(1, time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `{ "ok": true }`, string(resp.Body))
}

func TestTwoResponsesWithDifferentWhitespaceCanonicalizeEqual(t *testing.T) {
	a := canonicalizeBody([]byte("{\"a\":1,   \"b\":2}\n"))
	b := canonicalizeBody([]byte("{\"a\":1, \"b\":2}"))
	require.Equal(t, a, b)
}

func TestStripNondeterministicHeadersRemovesKnownHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Date", "now")
	h.Set("Content-Type", "application/json")
	out := StripNondeterministicHeaders(h)
	require.Empty(t, out.Get("Date"))
	require.Equal(t, "application/json", out.Get("Content-Type"))
}
