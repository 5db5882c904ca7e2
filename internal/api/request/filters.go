package request

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ndewijer/fund-ledger/internal/model"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ParseJournalFilter extracts and validates journal filters from query parameters.
// Both parameters are optional.
//
// Validation rules:
//   - investor: lowercased; must be empty or a 0x-prefixed 40 hex digit address
//   - limit: must be between 1 and 500 (defaults to 50)
func ParseJournalFilter(investorParam, limitParam string) (*model.JournalFilter, error) {
	filter := &model.JournalFilter{
		Investor: strings.ToLower(strings.TrimSpace(investorParam)),
	}

	if filter.Investor != "" && !isAddress(filter.Investor) {
		return nil, fmt.Errorf("invalid investor address: %s", investorParam)
	}

	limit, err := ParseLimit(limitParam)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit

	return filter, nil
}

// ParseLimit parses a result limit, defaulting to 50 when empty.
func ParseLimit(limitParam string) (int, error) {
	if limitParam == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: must be a number")
	}
	if limit < 1 || limit > maxLimit {
		return 0, fmt.Errorf("invalid limit: must be between 1 and %d", maxLimit)
	}
	return limit, nil
}

func isAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
