// Package migrations embeds the SQL migrations for the client's local cache
// database. They are applied with goose on startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
