// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains the idempotent DDL statements for all marketplace tables.
//
//go:embed migrations/001_schema.sql
var Schema string
