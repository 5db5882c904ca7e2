package datafeed

// ValueResponse is the body of GET {base}/value. Amounts are integer strings
// in cents so they survive JSON without float rounding.
type ValueResponse struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// RatesResponse is the body of GET {base}/rates, in cents per whole unit.
type RatesResponse struct {
	UsdEth string `json:"usdEth"`
	UsdBtc string `json:"usdBtc"`
	UsdLtc string `json:"usdLtc"`
}

// ErrorResponse is returned by the feed on non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
