package migrations

import "embed"

// Files holds the journal schema steps.
//
//go:embed *.sql
var Files embed.FS
