package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ndewijer/fund-ledger/internal/api"
	"github.com/ndewijer/fund-ledger/internal/api/middleware"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

const (
	managerKey  = "manager-key"
	exchangeKey = "exchange-key"
	investorKey = "investor-key"
)

type client struct {
	t      *testing.T
	server *httptest.Server
}

func (c client) do(method, path, key, address string, body any) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(c.t.Context(), method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	if key != "" {
		req.Header.Set(middleware.APIKeyHeader, key)
	}
	if address != "" {
		req.Header.Set(middleware.InvestorAddressHeader, address)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func newServer(t *testing.T) (client, *testutil.TestLedger) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	tl := testutil.NewTestLedger(t, db)

	cfg := &config.Config{
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Auth: config.AuthConfig{ManagerKey: managerKey, ExchangeKey: exchangeKey, InvestorKey: investorKey},
	}
	router := api.NewRouter(api.Services{
		System:       testutil.NewTestSystemService(t, db),
		Funds:        tl.Funds,
		ShareClasses: tl.ShareClasses,
		Nav:          tl.Nav,
		Lifecycle:    tl.Lifecycle,
		DataFeed:     tl.DataFeed,
	}, cfg, zaptest.NewLogger(t))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return client{t: t, server: server}, tl
}

// TestRouter_Authentication verifies that every ledger route requires a key
// while the system namespace stays public.
func TestRouter_Authentication(t *testing.T) {
	c, _ := newServer(t)

	resp := c.do(http.MethodGet, "/api/system/health", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/fund", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/fund", "wrong", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/fund", investorKey, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "investor key needs an address")

	resp = c.do(http.MethodGet, "/api/fund", managerKey, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

// TestRouter_RolesAreEnforcedByLedger verifies that an authenticated caller
// still gets 403 for actions its role may not run.
func TestRouter_RolesAreEnforcedByLedger(t *testing.T) {
	c, _ := newServer(t)
	investor := testutil.MakeAddress(1)

	resp := c.do(http.MethodPost, "/api/investor", investorKey, investor,
		map[string]any{"address": investor, "investorType": 2})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/exchange/remit", managerKey, "",
		map[string]string{"unit": "currency", "amount": "100"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// TestRouter_PathValidation verifies the path parameter middleware.
func TestRouter_PathValidation(t *testing.T) {
	c, _ := newServer(t)

	resp := c.do(http.MethodGet, "/api/investor/not-an-address", managerKey, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/share-class/abc", managerKey, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestRouter_InvestorLifecycle drives one currency investor from whitelisting
// to withdrawal through the HTTP surface and checks that the ledger
// reconciles at the end.
func TestRouter_InvestorLifecycle(t *testing.T) {
	c, tl := newServer(t)
	investor := testutil.MakeAddress(7)

	// Manager whitelists a currency investor
	resp := c.do(http.MethodPost, "/api/investor", managerKey, "",
		map[string]any{"address": investor, "investorType": 2, "shareClass": 0})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Investor requests a 2,000.00 subscription
	resp = c.do(http.MethodPost, "/api/me/subscription", investorKey, investor,
		map[string]string{"amount": "200000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Manager fills at par
	resp = c.do(http.MethodGet, "/api/share-class/0", managerKey, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	asOf := decode[model.ShareClass](t, resp).LastCalc.Unix()

	resp = c.do(http.MethodPost, "/api/lifecycle/subscriptions/fill", managerKey, "",
		map[string]int64{"asOf": asOf})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp)["count"])

	// Fund doubles in value
	resp = c.do(http.MethodPost, "/api/feed", managerKey, "",
		map[string]string{"value": "400000", "usdEth": "300000", "usdBtc": "6000000", "usdLtc": "9000"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/fund/nav", managerKey, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := decode[[]model.NavResult](t, resp)
	require.Len(t, results, 1)
	assert.Equal(t, "20000", results[0].NavPerShare.String())

	// Investor redeems half
	resp = c.do(http.MethodPost, "/api/me/redemption", investorKey, investor,
		map[string]string{"shares": "100000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Nothing settled yet: payout is refused
	resp = c.do(http.MethodPost, "/api/lifecycle/redemptions/fill", managerKey, "",
		map[string]int64{"asOf": results[0].LastCalc})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Exchange remits the proceeds, then the fill succeeds
	resp = c.do(http.MethodPost, "/api/exchange/remit", exchangeKey, "",
		map[string]string{"unit": "currency", "amount": "200000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/lifecycle/redemptions/fill", managerKey, "",
		map[string]int64{"asOf": results[0].LastCalc})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/me/withdraw", investorKey, investor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inv := decode[model.Investor](t, resp)
	assert.True(t, inv.PendingWithdrawal.IsZero())
	assert.Equal(t, "100000", inv.SharesOwned.String())

	resp = c.do(http.MethodGet, "/api/investor/"+investor+"/statement", managerKey, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	statement := decode[model.InvestorStatement](t, resp)
	assert.Equal(t, "$2,000.00", statement.HoldingValue)

	resp = c.do(http.MethodGet, "/api/fund/journal?investor="+investor+"&limit="+strconv.Itoa(1), managerKey, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]model.JournalEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "payout", entries[0].Action)

	tl.RequireReconciled(t)
}
