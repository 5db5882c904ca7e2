package repository

import "database/sql"

// Set bundles the repositories the ledger services work with.
type Set struct {
	Funds        *FundRepository
	ShareClasses *ShareClassRepository
	Investors    *InvestorRepository
	Snapshots    *NavSnapshotRepository
	DataFeed     *DataFeedRepository
	Journal      *JournalRepository
}

// NewSet creates every repository over the same connection.
func NewSet(db *sql.DB) Set {
	return Set{
		Funds:        NewFundRepository(db),
		ShareClasses: NewShareClassRepository(db),
		Investors:    NewInvestorRepository(db),
		Snapshots:    NewNavSnapshotRepository(db),
		DataFeed:     NewDataFeedRepository(db),
		Journal:      NewJournalRepository(db),
	}
}

// WithTx returns a copy of the set bound to tx.
func (s Set) WithTx(tx *sql.Tx) Set {
	return Set{
		Funds:        s.Funds.WithTx(tx),
		ShareClasses: s.ShareClasses.WithTx(tx),
		Investors:    s.Investors.WithTx(tx),
		Snapshots:    s.Snapshots.WithTx(tx),
		DataFeed:     s.DataFeed.WithTx(tx),
		Journal:      s.Journal.WithTx(tx),
	}
}
