package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is one append-only record of a ledger action.
type JournalEntry struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	ActorRole   string          `json:"actorRole"`
	Actor       string          `json:"actor,omitempty"`
	Investor    string          `json:"investor,omitempty"`
	Unit        Unit            `json:"unit,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Shares      decimal.Decimal `json:"shares"`
	ShareClass  *int            `json:"shareClass,omitempty"`
	NavPerShare decimal.Decimal `json:"navPerShare"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// JournalFilter narrows a journal query.
type JournalFilter struct {
	Investor string
	Limit    int
}
