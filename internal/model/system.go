package model

import "time"

// VersionInfo reports the application version, the applied schema migration
// and which optional subsystems are enabled.
type VersionInfo struct {
	AppVersion      string          `json:"appVersion"`
	SchemaVersion   int64           `json:"schemaVersion"`
	LatestMigration int64           `json:"latestMigration"`
	MigrationNeeded bool            `json:"migrationNeeded"`
	Features        map[string]bool `json:"features"`
}

// Health is the liveness report of the API. Status is "healthy" only when
// the database answers; the fund and quote fields are informational.
type Health struct {
	Status          string     `json:"status"`
	Database        string     `json:"database"`
	FundInitialized bool       `json:"fundInitialized"`
	LatestQuoteAt   *time.Time `json:"latestQuoteAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}
