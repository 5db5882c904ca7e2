package datafeed

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestFetchQuote(t *testing.T) {
	t.Run("combines value and rates", func(t *testing.T) {
		var auth atomic.Value
		server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
			auth.Store(r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/value":
				_, _ = w.Write([]byte(`{"value":"1500000","timestamp":1704067200}`))
			case "/rates":
				_, _ = w.Write([]byte(`{"usdEth":"300000","usdBtc":"6000000","usdLtc":"9000.75"}`))
			default:
				http.NotFound(w, r)
			}
		})

		q, err := NewHTTPClient(time.Second).FetchQuote(t.Context(), server.URL+"/", "s3cret")

		require.NoError(t, err)
		assert.Equal(t, "1500000", q.Value.String())
		assert.Equal(t, "300000", q.UsdEth.String())
		assert.Equal(t, "9000", q.UsdLtc.String(), "fractional cents are truncated")
		assert.Equal(t, time.Unix(1704067200, 0).UTC(), q.Timestamp)
		assert.Equal(t, "Bearer s3cret", auth.Load())
	})

	t.Run("uses local time without a feed timestamp", func(t *testing.T) {
		server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/value" {
				_, _ = w.Write([]byte(`{"value":"100"}`))
				return
			}
			_, _ = w.Write([]byte(`{"usdEth":"1","usdBtc":"1","usdLtc":"1"}`))
		})
		client := NewHTTPClient(time.Second)
		now := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
		client.now = func() time.Time { return now }

		q, err := client.FetchQuote(t.Context(), server.URL, "")

		require.NoError(t, err)
		assert.Equal(t, now.Truncate(time.Second), q.Timestamp)
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/value" && calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			if r.URL.Path == "/value" {
				_, _ = w.Write([]byte(`{"value":"100"}`))
				return
			}
			_, _ = w.Write([]byte(`{"usdEth":"1","usdBtc":"1","usdLtc":"1"}`))
		})

		q, err := NewHTTPClient(time.Second).WithRetry(3, time.Millisecond).FetchQuote(t.Context(), server.URL, "")

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, "100", q.Value.String())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var valueCalls atomic.Int32
		server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/value" {
				valueCalls.Add(1)
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := NewHTTPClient(time.Second).WithRetry(2, time.Millisecond).FetchQuote(t.Context(), server.URL, "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.Contains(t, err.Error(), "status 503")
		assert.ErrorIs(t, err, errServerError)
		assert.LessOrEqual(t, valueCalls.Load(), int32(2))
	})

	t.Run("reports client errors without retrying", func(t *testing.T) {
		var calls atomic.Int32
		server := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad token"}`))
		})

		_, err := NewHTTPClient(time.Second).WithRetry(3, time.Millisecond).FetchQuote(t.Context(), server.URL, "x")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "feed returned 401: bad token")
		assert.LessOrEqual(t, calls.Load(), int32(2), "one call per endpoint at most")
	})

	t.Run("rejects malformed amounts", func(t *testing.T) {
		server := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/value" {
				_, _ = w.Write([]byte(`{"value":"lots"}`))
				return
			}
			_, _ = w.Write([]byte(`{"usdEth":"1","usdBtc":"1","usdLtc":"1"}`))
		})

		_, err := NewHTTPClient(time.Second).FetchQuote(t.Context(), server.URL, "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid value")
	})

	t.Run("requires a url", func(t *testing.T) {
		_, err := NewHTTPClient(time.Second).FetchQuote(t.Context(), "", "")
		require.Error(t, err)
	})
}
