package db

import "embed"

// EmbedMigrations contains the catalog schemas, one directory per kind.
//
//go:embed migrations/scia/*.sql migrations/gosat/*.sql
var EmbedMigrations embed.FS
