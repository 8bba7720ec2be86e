// Package migrations embeds the goose SQL migrations that define the
// database schema. The server applies them at startup or via the
// -migrate flag.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
