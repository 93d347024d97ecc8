// Package migrations carries the session store schema into the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
