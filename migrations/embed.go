// Package migrations embeds the schema and seed SQL files.
package migrations

import "embed"

// FS holds NNN_name.sql schema migrations and seed/NNN_name.sql seeds
//
//go:embed *.sql seed/*.sql
var FS embed.FS
