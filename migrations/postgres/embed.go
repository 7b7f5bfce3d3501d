// Package migrations embebe el schema SQL de Postgres.
package migrations

import "embed"

// FS contiene los scripts *_up.sql / *_down.sql, aplicados en orden lexicográfico.
//
//go:embed *.sql
var FS embed.FS
