// Package db embeds the SQL schema applied on startup and the default menu.
package db

import _ "embed"

// Schema creates the catalog, discount, order and order sequence tables.
// Every statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string

// Menu is the default catalog and discount codes in JSON.
//
//go:embed seed/menu.json
var Menu []byte
