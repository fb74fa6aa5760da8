// Package migrations embeds the goose SQL migrations of the relational
// backend, one directory per dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
