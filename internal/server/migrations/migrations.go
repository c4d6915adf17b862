// Package migrations embeds the server's SQL schema migrations so goose can
// apply them from the binary without external files.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
