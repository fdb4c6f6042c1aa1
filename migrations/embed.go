// Package migrations embeds the SQL schema files so binaries can apply them
// without access to the source tree.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
