// Package appfs holds the files embedded into the binaries: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* common-passwords.txt.gz
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)

// CommonPasswordsFile is a gzipped, newline separated list of lowercase passwords that are refused.
const CommonPasswordsFile = "common-passwords.txt.gz"
