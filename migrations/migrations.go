// Package migrations embeds the versioned SQL schema applied by `pulsevet-server migrate up`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
