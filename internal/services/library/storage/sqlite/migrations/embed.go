package migrations

import "embed"

// FS contains embedded SQLite migrations for library storage.
//
//go:embed *.sql
var FS embed.FS
