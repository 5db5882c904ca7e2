package testutil

import (
	"context"
	"sync"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// MockFeedClient is a mock implementation of datafeed.Client for testing.
// It returns a predefined quote instead of calling the valuation service.
type MockFeedClient struct {
	mu sync.Mutex
	// MockQuote is the quote to return from FetchQuote
	MockQuote model.Quote
	// MockError is the error to return from FetchQuote
	MockError error
	// Calls tracks how many times FetchQuote was called
	Calls int
	// LastURL and LastToken record the arguments of the last call
	LastURL   string
	LastToken string
}

// NewMockFeedClient creates a mock returning a quote of 1,000,000.00 USD at
// 3,000.00 USD per ETH.
func NewMockFeedClient() *MockFeedClient {
	return &MockFeedClient{
		MockQuote: model.Quote{
			Value:  Dec(100000000),
			UsdEth: Dec(300000),
			UsdBtc: Dec(6000000),
			UsdLtc: Dec(9000),
		},
	}
}

// FetchQuote returns the configured quote and error.
func (m *MockFeedClient) FetchQuote(_ context.Context, baseURL, token string) (model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastURL = baseURL
	m.LastToken = token
	if m.MockError != nil {
		return model.Quote{}, m.MockError
	}
	q := m.MockQuote
	if q.Timestamp.IsZero() {
		q.Timestamp = Epoch
	}
	return q, nil
}

// WithError configures the mock to return the specified error.
func (m *MockFeedClient) WithError(err error) *MockFeedClient {
	m.MockError = err
	return m
}

// WithQuote configures the quote returned by FetchQuote.
func (m *MockFeedClient) WithQuote(q model.Quote) *MockFeedClient {
	m.MockQuote = q
	return m
}
