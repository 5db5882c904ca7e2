package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a data feed reading: the portfolio value held outside the fund
// and the reference exchange rates, all in cents.
type Quote struct {
	Value     decimal.Decimal `json:"value"`
	UsdEth    decimal.Decimal `json:"usdEth"`
	UsdBtc    decimal.Decimal `json:"usdBtc"`
	UsdLtc    decimal.Decimal `json:"usdLtc"`
	Timestamp time.Time       `json:"timestamp"`
}

// FeedConfig describes the remote data feed. Token is stored encrypted.
type FeedConfig struct {
	URL                   string    `json:"url"`
	EncryptedToken        string    `json:"-"`
	SecondsBetweenQueries int       `json:"secondsBetweenQueries"`
	UpdatedAt             time.Time `json:"updatedAt"`
}
