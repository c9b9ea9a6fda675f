// Package sql embeds the relational and ClickHouse schema shipped with the
// service. Migrations are applied out of band; the embedded files are the
// source of truth for deployments and integration tests.
package sql

import (
	"embed"
)

//go:embed schema/*.sql
//go:embed clickhouse/*.sql
var Content embed.FS
