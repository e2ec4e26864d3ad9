package migrations

import "embed"

// FS contains the embedded SQLite migrations for review records.
//
//go:embed *.sql
var FS embed.FS
