// Package version holds build information set through -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/ndewijer/fund-ledger/internal/version.Version=1.2.0"
var Version = "dev"
