// Package migrations embeds the client's sqlite schema migrations so goose
// can apply them from the binary without external files.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
