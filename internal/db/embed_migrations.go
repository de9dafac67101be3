package db

import "embed"

// MigrationFS embeds the schema and store functions applied by cmd/migrate and
// by the repository integration tests.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
