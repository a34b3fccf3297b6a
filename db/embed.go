// Package db provides the embedded order journal schema.
package db

import _ "embed"

// Schema contains the DDL statements for the order journal.
//
//go:embed migrations/001_schema.sql
var Schema string
