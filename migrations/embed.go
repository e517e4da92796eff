// Package migrations embeds the SQL schema migrations for every supported driver.
package migrations

import "embed"

// FS holds the migration files laid out as <driver>/<version>_<name>.<up|down>.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
