package migrations

import "embed"

// FS contains embedded SQLite migrations for accounts storage.
//
//go:embed *.sql
var FS embed.FS
