package migrations

import "embed"

// PostgresFS embeds the holder record and rewards vault schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the engine event schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
