// Package datafeed fetches portfolio valuations and exchange rates from the
// remote valuation service.
package datafeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// Client defines the interface for fetching a quote from the valuation service.
// This interface enables dependency injection and testing with mock implementations.
type Client interface {
	FetchQuote(ctx context.Context, baseURL, token string) (model.Quote, error)
}

// HTTPClient fetches quotes over HTTP. The value and the rates are requested
// concurrently and combined into one quote.
type HTTPClient struct {
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// NewHTTPClient creates a client with a request timeout and a retry policy
// for 5xx responses.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: 4,
		backoff:     500 * time.Millisecond,
		maxBackoff:  5 * time.Second,
		now:         time.Now,
	}
}

// WithRetry overrides the retry policy.
func (c *HTTPClient) WithRetry(maxAttempts int, backoff time.Duration) *HTTPClient {
	c.maxAttempts = maxAttempts
	c.backoff = backoff
	return c
}

// FetchQuote requests {baseURL}/value and {baseURL}/rates and returns the
// combined quote. The quote timestamp is the one reported with the value,
// or the local time when the feed does not report one.
func (c *HTTPClient) FetchQuote(ctx context.Context, baseURL, token string) (model.Quote, error) {
	if baseURL == "" {
		return model.Quote{}, fmt.Errorf("feed url is not configured")
	}
	base := strings.TrimRight(baseURL, "/")

	var value ValueResponse
	var rates RatesResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, base+"/value", token, &value)
	})
	g.Go(func() error {
		return c.getJSON(gctx, base+"/rates", token, &rates)
	})
	if err := g.Wait(); err != nil {
		return model.Quote{}, err
	}

	q := model.Quote{Timestamp: c.now().UTC().Truncate(time.Second)}
	if value.Timestamp > 0 {
		q.Timestamp = time.Unix(value.Timestamp, 0).UTC()
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"value", value.Value, &q.Value},
		{"usdEth", rates.UsdEth, &q.UsdEth},
		{"usdBtc", rates.UsdBtc, &q.UsdBtc},
		{"usdLtc", rates.UsdLtc, &q.UsdLtc},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return model.Quote{}, fmt.Errorf("invalid %s in feed response: %w", f.name, err)
		}
		*f.dst = d.Truncate(0)
	}

	return q, nil
}

// errServerError marks a 5xx response. Only those are retried.
var errServerError = errors.New("feed server error")

func (c *HTTPClient) getJSON(ctx context.Context, url, token string, out any) error {
	b := retry.NewExponential(max(c.backoff, time.Millisecond))
	b = retry.WithCappedDuration(c.maxBackoff, b)
	b = retry.WithMaxRetries(uint64(max(c.maxAttempts-1, 0)), b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("feed request failed: %w", err)
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read feed response: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("%w: status %d", errServerError, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			var feedErr ErrorResponse
			if json.Unmarshal(data, &feedErr) == nil && feedErr.Error != "" {
				return fmt.Errorf("feed returned %d: %s", resp.StatusCode, feedErr.Error)
			}
			return fmt.Errorf("feed returned %d", resp.StatusCode)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode feed response: %w", err)
		}
		return nil
	})
	if errors.Is(err, errServerError) {
		return fmt.Errorf("feed unavailable after %d attempts: %s: %w", max(c.maxAttempts, 1), url, err)
	}
	return err
}
