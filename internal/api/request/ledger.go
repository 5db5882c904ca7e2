package request

// FeeTermsRequest creates a share class or replaces its fee rates.
type FeeTermsRequest struct {
	AdminFeeBps   *int `json:"adminFeeBps"`
	MgmtFeeBps    *int `json:"mgmtFeeBps"`
	PerformFeeBps *int `json:"performFeeBps"`
}

// WhitelistInvestorRequest adds an address to the investor list.
type WhitelistInvestorRequest struct {
	Address      string `json:"address"`
	InvestorType int    `json:"investorType"`
	ShareClass   int    `json:"shareClass"`
}

// AmountRequest carries a fixed-point amount as a decimal string.
// Used for subscription requests and allocations.
type AmountRequest struct {
	Amount string `json:"amount"`
}

// RedemptionRequest carries a share amount (4 implied decimals).
type RedemptionRequest struct {
	Shares string `json:"shares"`
}

// FulfilRequest names the NAV calculation the manager priced against.
type FulfilRequest struct {
	AsOf int64 `json:"asOf"`
}

// SubscribeCurrencyRequest deposits and fulfils a currency subscription.
type SubscribeCurrencyRequest struct {
	Amount string `json:"amount"`
	AsOf   int64  `json:"asOf"`
}

// RemitRequest records funds returned by the exchange.
type RemitRequest struct {
	Unit   string `json:"unit"`
	Amount string `json:"amount"`
}

// FeedUpdateRequest is a manual data feed reading. All values are cents.
type FeedUpdateRequest struct {
	Value  string `json:"value"`
	UsdEth string `json:"usdEth"`
	UsdBtc string `json:"usdBtc"`
	UsdLtc string `json:"usdLtc"`
}
