package appfs

import "embed"

// FS holds the embedded email templates and database migrations.
//
//go:embed all:assets migrations
var FS embed.FS
