// Package appfs embeds the static assets shipped inside the binaries: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates
var FS embed.FS
