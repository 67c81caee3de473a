// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

// FS holds every migration file, discovered by the bun migrator.
//
//go:embed *.sql
var FS embed.FS
