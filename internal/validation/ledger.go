package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/model"
)

const maxBps = 10000

// ValidateFeeTerms checks that every rate is present and within 0..10000 bps.
func ValidateFeeTerms(req request.FeeTermsRequest) (model.FeeTerms, error) {
	fields := make(map[string]string)

	check := func(name string, v *int) int {
		if v == nil {
			fields[name] = name + " is required"
			return 0
		}
		if *v < 0 || *v > maxBps {
			fields[name] = fmt.Sprintf("%s must be between 0 and %d", name, maxBps)
		}
		return *v
	}

	terms := model.FeeTerms{
		AdminFeeBps:   check("adminFeeBps", req.AdminFeeBps),
		MgmtFeeBps:    check("mgmtFeeBps", req.MgmtFeeBps),
		PerformFeeBps: check("performFeeBps", req.PerformFeeBps),
	}
	return terms, orNil(fields)
}

// ValidateWhitelistInvestor checks the address format and investor type.
func ValidateWhitelistInvestor(req request.WhitelistInvestorRequest) error {
	fields := make(map[string]string)

	if !IsAddress(NormalizeAddress(req.Address)) {
		fields["address"] = "must be 0x followed by 40 hex digits"
	}
	if !model.InvestorType(req.InvestorType).Valid() {
		fields["investorType"] = "must be 1 (asset) or 2 (currency)"
	}
	if req.ShareClass < 0 {
		fields["shareClass"] = "shareClass cannot be negative"
	}

	return orNil(fields)
}

// ValidatePositiveAmount parses an amount that must be greater than zero.
func ValidatePositiveAmount(req request.AmountRequest) (decimal.Decimal, error) {
	fields := make(map[string]string)
	amount := parseInteger("amount", req.Amount, fields)
	if len(fields) == 0 && !amount.IsPositive() {
		fields["amount"] = "amount must be positive"
	}
	return amount, orNil(fields)
}

// ValidateAllocation parses an allocation, which may be zero.
func ValidateAllocation(req request.AmountRequest) (decimal.Decimal, error) {
	fields := make(map[string]string)
	amount := parseInteger("amount", req.Amount, fields)
	if len(fields) == 0 && amount.IsNegative() {
		fields["amount"] = "amount cannot be negative"
	}
	return amount, orNil(fields)
}

// ValidateRedemption parses a share amount.
func ValidateRedemption(req request.RedemptionRequest) (decimal.Decimal, error) {
	fields := make(map[string]string)
	shares := parseInteger("shares", req.Shares, fields)
	if len(fields) == 0 && !shares.IsPositive() {
		fields["shares"] = "shares must be positive"
	}
	return shares, orNil(fields)
}

// ValidateFulfil checks the NAV timestamp a fulfilment was priced at.
func ValidateFulfil(req request.FulfilRequest) error {
	if req.AsOf <= 0 {
		return &Error{Fields: map[string]string{"asOf": "asOf must be a unix timestamp"}}
	}
	return nil
}

// ValidateSubscribeCurrency checks a direct currency subscription.
func ValidateSubscribeCurrency(req request.SubscribeCurrencyRequest) (decimal.Decimal, error) {
	fields := make(map[string]string)
	amount := parseInteger("amount", req.Amount, fields)
	if len(fields) == 0 && !amount.IsPositive() {
		fields["amount"] = "amount must be positive"
	}
	if req.AsOf <= 0 {
		fields["asOf"] = "asOf must be a unix timestamp"
	}
	return amount, orNil(fields)
}

// ValidateRemit checks the unit and amount returned by the exchange.
func ValidateRemit(req request.RemitRequest) (model.Unit, decimal.Decimal, error) {
	fields := make(map[string]string)
	unit := model.Unit(req.Unit)
	if !unit.Valid() {
		fields["unit"] = fmt.Sprintf("unit must be %q or %q", model.UnitAsset, model.UnitCurrency)
	}
	amount := parseInteger("amount", req.Amount, fields)
	if _, bad := fields["amount"]; !bad && !amount.IsPositive() {
		fields["amount"] = "amount must be positive"
	}
	return unit, amount, orNil(fields)
}

// ValidateFeedUpdate parses a manual data feed reading. Zero values are
// rejected by the service, not here, so the error kind matches the API.
func ValidateFeedUpdate(req request.FeedUpdateRequest) (model.Quote, error) {
	fields := make(map[string]string)
	q := model.Quote{
		Value:  parseInteger("value", req.Value, fields),
		UsdEth: parseInteger("usdEth", req.UsdEth, fields),
		UsdBtc: parseInteger("usdBtc", req.UsdBtc, fields),
		UsdLtc: parseInteger("usdLtc", req.UsdLtc, fields),
	}
	for name, v := range map[string]decimal.Decimal{"value": q.Value, "usdEth": q.UsdEth, "usdBtc": q.UsdBtc, "usdLtc": q.UsdLtc} {
		if _, bad := fields[name]; !bad && v.IsNegative() {
			fields[name] = name + " cannot be negative"
		}
	}
	return q, orNil(fields)
}
